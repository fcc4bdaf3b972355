package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yourusername/research-lab/internal/api"
	"github.com/yourusername/research-lab/internal/models"
)

func (c *cli) client() *api.Client {
	return api.NewClient(c.apiURL, time.Duration(c.timeout)*time.Second)
}

func (c *cli) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), time.Duration(c.timeout)*time.Second)
}

func (c *cli) experimentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiment",
		Aliases: []string{"exp"},
		Short:   "Manage experiments through the API",
	}
	cmd.AddCommand(
		c.experimentCreateCmd(),
		c.experimentStartCmd(),
		c.experimentStatusCmd(),
		c.experimentCancelCmd(),
		c.experimentListCmd(),
		c.experimentAnalyzeCmd(),
	)
	return cmd
}

func (c *cli) experimentCreateCmd() *cobra.Command {
	var (
		req    api.CreateExperimentRequest
		params string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if params != "" {
				if err := json.Unmarshal([]byte(params), &req.Parameters); err != nil {
					return fmt.Errorf("--params must be a JSON object: %w", err)
				}
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			exp, err := c.client().CreateExperiment(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), exp)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Experiment name")
	cmd.Flags().StringVar(&req.Hypothesis, "hypothesis", "", "Hypothesis under test")
	cmd.Flags().StringVar(&req.Type, "type", string(models.ExperimentTypePatternDiscovery), "Experiment type")
	cmd.Flags().StringVar(&params, "params", "", "Parameters as a JSON object")
	cmd.Flags().IntVar(&req.Priority, "priority", 0, "Priority, higher runs first")
	cmd.Flags().Float64Var(&req.TimeoutHours, "timeout-hours", 0, "Execution timeout in hours")
	cmd.Flags().BoolVar(&req.Start, "start", false, "Start the experiment immediately")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) experimentStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start a pending experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid experiment id: %w", err)
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			exp, err := c.client().StartExperiment(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", exp.ID, exp.Status)
			return nil
		},
	}
}

func (c *cli) experimentStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show an experiment and orchestrator counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid experiment id: %w", err)
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			report, err := c.client().GetExperiment(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func (c *cli) experimentCancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid experiment id: %w", err)
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			report, err := c.client().CancelExperiment(ctx, id, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", report.Experiment.ID, report.Experiment.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the cancellation")
	return cmd
}

func (c *cli) experimentListCmd() *cobra.Command {
	var (
		statuses []string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]models.ExperimentStatus, 0, len(statuses))
			for _, s := range statuses {
				status := models.ExperimentStatus(strings.ToLower(s))
				if !status.Valid() {
					return fmt.Errorf("unknown status %q", s)
				}
				filter = append(filter, status)
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			exps, err := c.client().ListExperiments(ctx, filter, limit)
			if err != nil {
				return err
			}
			return printExperiments(cmd.OutOrStdout(), exps)
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}

func (c *cli) experimentAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <id>",
		Short: "Analyze a finished experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid experiment id: %w", err)
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			result, err := c.client().AnalyzeExperiment(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func (c *cli) researchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Trigger research work",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one research cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			report, err := c.client().RunResearchCycle(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	})
	return cmd
}

func (c *cli) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <id> [id...]",
		Short: "Rank experiments by fitness",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid experiment id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			report, err := c.client().Compare(ctx, ids)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tEXPERIMENT\tFITNESS\tRISK")
			for _, r := range report.Ranking {
				fmt.Fprintf(w, "%d\t%s\t%.4f\t%s\n", r.Rank, r.ExperimentID, r.FitnessScore, r.RiskProfile)
			}
			fmt.Fprintf(w, "\nsuccess rate %.0f%%, average fitness %.4f\n", report.SuccessRate*100, report.AverageFitness)
			return w.Flush()
		},
	}
}

func printExperiments(out io.Writer, exps []*models.Experiment) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tPRIORITY\tCREATED")
	for _, e := range exps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID, e.Name, e.Type, e.Status, e.Priority, e.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
