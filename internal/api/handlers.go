package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/yourusername/research-lab/internal/analysis"
	"github.com/yourusername/research-lab/internal/models"
	"github.com/yourusername/research-lab/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// CreateExperimentRequest is the body of POST /api/v1/experiments
type CreateExperimentRequest struct {
	Name         string                 `json:"name" validate:"required,max=255"`
	Hypothesis   string                 `json:"hypothesis"`
	Type         string                 `json:"experiment_type" validate:"required,experimenttype"`
	Parameters   map[string]interface{} `json:"parameters"`
	Priority     int                    `json:"priority"`
	TimeoutHours float64                `json:"timeout_hours" validate:"gte=0"`
	SessionID    *uuid.UUID             `json:"session_id,omitempty"`
	ParentID     *uuid.UUID             `json:"parent_id,omitempty"`
	// Start asks for the experiment to be started immediately.
	Start bool `json:"start"`
}

// CancelRequest is the optional body of POST /:id/cancel
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CompareRequest is the body of POST /api/v1/analysis/compare
type CompareRequest struct {
	ExperimentIDs []uuid.UUID `json:"experiment_ids" validate:"required,min=1,max=50"`
}

// RefineRequest is the optional body of POST /api/v1/research/refinements
type RefineRequest struct {
	TopN int `json:"top_n" validate:"gte=0,lte=50"`
}

func (s *Server) createExperiment(c echo.Context) error {
	req := &CreateExperimentRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return errorsResponse(c, http.StatusBadRequest, errs...)
	}

	ctx := c.Request().Context()
	exp, err := s.deps.Experiments.CreateExperiment(ctx, service.CreateRequest{
		Name:         req.Name,
		Hypothesis:   req.Hypothesis,
		Type:         models.ExperimentType(req.Type),
		Parameters:   req.Parameters,
		Priority:     req.Priority,
		TimeoutHours: req.TimeoutHours,
		SessionID:    req.SessionID,
		ParentID:     req.ParentID,
	})
	if err != nil {
		return s.errorResponse(c, err)
	}

	if req.Start {
		started, err := s.deps.Experiments.StartExperiment(ctx, exp.ID)
		if err != nil {
			return s.errorResponse(c, err)
		}
		exp = started
	}
	return dataResponse(c, http.StatusCreated, exp)
}

func (s *Server) listExperiments(c echo.Context) error {
	filter := models.ExperimentFilter{Limit: defaultListLimit}

	for _, raw := range c.QueryParams()["status"] {
		status := models.ExperimentStatus(raw)
		if !status.Valid() {
			return errorsResponse(c, http.StatusBadRequest, Error{Code: "ERR_VALIDATION", Field: "status", Message: "unknown status " + raw})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if raw := c.QueryParam("type"); raw != "" {
		filter.Type = models.ExperimentType(raw)
		if !filter.Type.Valid() {
			return errorsResponse(c, http.StatusBadRequest, Error{Code: "ERR_VALIDATION", Field: "type", Message: "unknown experiment type " + raw})
		}
	}
	if raw := c.QueryParam("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errorsResponse(c, http.StatusBadRequest, Error{Code: "ERR_VALIDATION", Field: "session_id", Message: "session_id must be a UUID"})
		}
		filter.SessionID = &id
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			return errorsResponse(c, http.StatusBadRequest, Error{Code: "ERR_VALIDATION", Field: "limit", Message: "limit must be between 1 and 500"})
		}
		filter.Limit = n
	}

	exps, err := s.deps.Experiments.ListExperiments(c.Request().Context(), filter)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return dataResponse(c, http.StatusOK, ListData{Rows: exps, Total: len(exps)})
}

func (s *Server) getExperiment(c echo.Context) error {
	id, errResp := s.pathID(c)
	if errResp != nil {
		return errResp()
	}

	report, err := s.deps.Experiments.GetStatus(c.Request().Context(), id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return dataResponse(c, http.StatusOK, report)
}

func (s *Server) startExperiment(c echo.Context) error {
	id, errResp := s.pathID(c)
	if errResp != nil {
		return errResp()
	}

	exp, err := s.deps.Experiments.StartExperiment(c.Request().Context(), id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return dataResponse(c, http.StatusAccepted, exp)
}

func (s *Server) cancelExperiment(c echo.Context) error {
	id, errResp := s.pathID(c)
	if errResp != nil {
		return errResp()
	}

	req := &CancelRequest{}
	if c.Request().ContentLength > 0 {
		if errs := bindAndValidate(c, req); errs != nil {
			return errorsResponse(c, http.StatusBadRequest, errs...)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.CancelWait)
	defer cancel()
	if err := s.deps.Experiments.CancelExperiment(ctx, id, req.Reason); err != nil {
		return s.errorResponse(c, err)
	}

	report, err := s.deps.Experiments.GetStatus(c.Request().Context(), id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return dataResponse(c, http.StatusOK, report)
}

func (s *Server) analyzeExperiment(c echo.Context) error {
	id, errResp := s.pathID(c)
	if errResp != nil {
		return errResp()
	}

	result, err := s.analyze(c.Request().Context(), id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return dataResponse(c, http.StatusOK, result)
}

func (s *Server) compareExperiments(c echo.Context) error {
	req := &CompareRequest{}
	if errs := bindAndValidate(c, req); errs != nil {
		return errorsResponse(c, http.StatusBadRequest, errs...)
	}

	ctx := c.Request().Context()
	results := make([]*analysis.AnalysisResult, 0, len(req.ExperimentIDs))
	for _, id := range req.ExperimentIDs {
		result, err := s.analyze(ctx, id)
		if err != nil {
			return s.errorResponse(c, err)
		}
		results = append(results, result)
	}
	return dataResponse(c, http.StatusOK, analysis.CompareResults(results))
}

func (s *Server) stats(c echo.Context) error {
	return dataResponse(c, http.StatusOK, s.deps.Experiments.Stats())
}

func (s *Server) runResearchCycle(c echo.Context) error {
	report, err := s.deps.Research.RunResearchCycle(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return dataResponse(c, http.StatusAccepted, report)
}

func (s *Server) refineExperiments(c echo.Context) error {
	req := &RefineRequest{}
	if c.Request().ContentLength > 0 {
		if errs := bindAndValidate(c, req); errs != nil {
			return errorsResponse(c, http.StatusBadRequest, errs...)
		}
	}

	children, err := s.deps.Research.RefineTopExperiments(c.Request().Context(), req.TopN)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return dataResponse(c, http.StatusCreated, ListData{Rows: children, Total: len(children)})
}

// analyze re-runs analysis over a stored experiment.
func (s *Server) analyze(ctx context.Context, id uuid.UUID) (*analysis.AnalysisResult, error) {
	report, err := s.deps.Experiments.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.deps.Analyzer.Analyze(ctx, analysis.FromExperiment(report.Experiment))
}

// pathID parses the :id parameter. On failure it returns a writer for the 400.
func (s *Server) pathID(c echo.Context) (uuid.UUID, func() error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, func() error {
			return errorsResponse(c, http.StatusBadRequest, Error{Code: "ERR_VALIDATION", Field: "id", Message: "id must be a UUID"})
		}
	}
	return id, nil
}
