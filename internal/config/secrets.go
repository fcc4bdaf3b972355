// Package config provides configuration management for the research lab.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var errNoSecretData = errors.New("no secret data found in AWS Secrets Manager")

// SecretsOverlay represents the structure of secrets stored in AWS Secrets Manager
type SecretsOverlay struct {
	DatabasePassword string `json:"database_password"`
	PlatformAPIKey   string `json:"platform_api_key"`
	HypothesisAPIKey string `json:"hypothesis_api_key"`
}

// secretGetter is the subset of the Secrets Manager client used here
type secretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func fetchSecrets(ctx context.Context, client secretGetter, secretName string) (*SecretsOverlay, error) {
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret from AWS Secrets Manager: %w", err)
	}
	return parseSecretData(result)
}

func parseSecretData(result *secretsmanager.GetSecretValueOutput) (*SecretsOverlay, error) {
	var raw []byte
	switch {
	case result.SecretString != nil:
		raw = []byte(*result.SecretString)
	case result.SecretBinary != nil:
		raw = result.SecretBinary
	default:
		return nil, errNoSecretData
	}

	var secrets SecretsOverlay
	if err := json.Unmarshal(raw, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}
	return &secrets, nil
}

// overlaySecretsOnConfig applies non-empty secrets to configuration
func overlaySecretsOnConfig(cfg *Config, secrets *SecretsOverlay) {
	if secrets.DatabasePassword != "" {
		cfg.Database.Password = secrets.DatabasePassword
	}
	if secrets.PlatformAPIKey != "" {
		cfg.Platform.APIKey = secrets.PlatformAPIKey
	}
	if secrets.HypothesisAPIKey != "" {
		cfg.Hypothesis.APIKey = secrets.HypothesisAPIKey
	}
}

// LoadSecretsFromAWS overlays secrets onto the configuration when a secret name is configured
func LoadSecretsFromAWS(ctx context.Context, cfg *Config) error {
	if cfg.Secrets.SecretName == "" {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Secrets.AWSRegion))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	secrets, err := fetchSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.Secrets.SecretName)
	if err != nil {
		return err
	}

	overlaySecretsOnConfig(cfg, secrets)
	return nil
}
