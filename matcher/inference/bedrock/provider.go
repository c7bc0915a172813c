// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

// Package bedrock provides an inference provider backed by AWS Bedrock.
// It uses the AWS SDK v2 runtime client, so authentication comes from IAM
// (instance roles, environment, or shared config) rather than API keys.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"meshmatch/platform/matcher/inference"
)

const (
	// DefaultModelID is the default Bedrock model identifier
	DefaultModelID = "anthropic.claude-sonnet-4-v1:0"

	// DefaultMaxTokens is the default max tokens for responses
	DefaultMaxTokens = 2048

	// anthropicVersion is the Bedrock payload version for Claude models
	anthropicVersion = "bedrock-2023-05-31"
)

// InvokeClient is the subset of the Bedrock runtime client used by the
// provider (enables testing).
type InvokeClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements inference.Service for AWS Bedrock Claude models
type Provider struct {
	client InvokeClient
	region string
	model  string
}

// Config contains configuration for the Bedrock provider
type Config struct {
	Region string       // Optional: AWS region (default from AWS config chain)
	Model  string       // Optional: Bedrock model ID (default: anthropic.claude-sonnet-4-v1:0)
	Client InvokeClient // Optional: custom runtime client
}

// NewProvider creates a new Bedrock provider. When no client is supplied
// the default AWS configuration chain is used to build one.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModelID
	}

	client := cfg.Client
	if client == nil {
		var opts []func(*config.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		if cfg.Region == "" {
			cfg.Region = awsCfg.Region
		}
		client = bedrockruntime.NewFromConfig(awsCfg)
	}

	return &Provider{
		client: client,
		region: cfg.Region,
		model:  cfg.Model,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "bedrock"
}

// Model returns the configured Bedrock model ID
func (p *Provider) Model() string {
	return p.model
}

// Request invokes the model with an Anthropic messages payload.
func (p *Provider) Request(ctx context.Context, req inference.Request) (*inference.Result, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	system := req.SystemInstructions
	if req.Schema != "" {
		system = system + "\n\nRespond with a single JSON document matching this schema, with no surrounding text:\n" + req.Schema
	}

	body := bedrockRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages: []bedrockMessage{
			{Role: "user", Content: req.Prompt},
		},
	}
	if system != "" {
		body.System = system
	}
	if req.Temperature >= 0 {
		body.Temperature = &req.Temperature
	}

	requestJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock API error: %w", err)
	}

	var apiResp bedrockResponse
	if err := json.Unmarshal(output.Body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var content string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	raw := json.RawMessage(content)
	if req.Schema != "" {
		raw, err = inference.ExtractJSON(content)
		if err != nil {
			return nil, err
		}
	}

	return &inference.Result{
		Raw:        raw,
		Model:      p.model,
		StopReason: apiResp.StopReason,
		Usage: inference.UsageStats{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
			TotalTokens:  apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
		Latency: time.Since(start),
	}, nil
}

// HealthCheck verifies the model can be invoked
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Request(ctx, inference.Request{
		Prompt:      "ping",
		MaxTokens:   1,
		Temperature: 0,
	})
	return err
}

// Internal API types

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Temperature      *float64         `json:"temperature,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
