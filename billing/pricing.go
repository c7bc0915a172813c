// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"encoding/json"
	"os"
	"sync"
)

// ModelRate contains pricing per 1K tokens for a model
type ModelRate struct {
	InputPer1K  float64 `json:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k"`
}

// PricingTable holds token rates for every billable model plus the
// reference model used for blended overage pricing. Tables are injected at
// construction so tests can substitute synthetic rates.
type PricingTable struct {
	Models         map[string]ModelRate `json:"models"`
	ReferenceModel string               `json:"reference_model"`
	mu             sync.RWMutex
}

// DefaultReferenceModel is the fixed model whose blended rate prices
// overage tokens regardless of which models produced them.
const DefaultReferenceModel = "claude-sonnet-4"

// defaultRates contains default pricing for the models the matching engine
// uses. Prices are per 1K tokens in USD.
var defaultRates = map[string]ModelRate{
	"claude-opus-4":              {InputPer1K: 0.015, OutputPer1K: 0.075},
	"claude-sonnet-4":            {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-sonnet":          {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-haiku":           {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"claude-3-haiku":             {InputPer1K: 0.00025, OutputPer1K: 0.00125},
}

// NewPricingTable creates a pricing table with default rates
func NewPricingTable() *PricingTable {
	return &PricingTable{
		Models:         copyRates(defaultRates),
		ReferenceModel: DefaultReferenceModel,
	}
}

// LoadPricingFromEnv loads custom pricing from MESHMATCH_PRICING_CONFIG,
// merged over the defaults
func LoadPricingFromEnv() *PricingTable {
	table := NewPricingTable()

	pricingJSON := os.Getenv("MESHMATCH_PRICING_CONFIG")
	if pricingJSON != "" {
		var custom PricingTable
		if err := json.Unmarshal([]byte(pricingJSON), &custom); err == nil {
			for model, rate := range custom.Models {
				table.Models[model] = rate
			}
			if custom.ReferenceModel != "" {
				table.ReferenceModel = custom.ReferenceModel
			}
		}
	}

	return table
}

// LoadPricingFromFile loads pricing from a JSON file, merged over defaults
func LoadPricingFromFile(path string) (*PricingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	table := NewPricingTable()
	var custom PricingTable
	if err := json.Unmarshal(data, &custom); err != nil {
		return nil, err
	}

	for model, rate := range custom.Models {
		table.Models[model] = rate
	}
	if custom.ReferenceModel != "" {
		table.ReferenceModel = custom.ReferenceModel
	}

	return table, nil
}

// Rate returns the rate pair for a model. A model absent from the table is
// a hard failure: cost cannot be estimated without a rate.
func (p *PricingTable) Rate(model string) (ModelRate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rate, ok := p.Models[model]
	if !ok {
		return ModelRate{}, ErrUnknownModel
	}
	return rate, nil
}

// Cost computes input/output/total cost for a token pair at a model's rate
func (p *PricingTable) Cost(model string, tokensIn, tokensOut int) (inputCost, outputCost, totalCost float64, err error) {
	rate, err := p.Rate(model)
	if err != nil {
		return 0, 0, 0, err
	}

	inputCost = float64(tokensIn) / 1000.0 * rate.InputPer1K
	outputCost = float64(tokensOut) / 1000.0 * rate.OutputPer1K
	return inputCost, outputCost, inputCost + outputCost, nil
}

// BlendedRate returns the average of the reference model's input and
// output per-1K rates, used for overage pricing.
func (p *PricingTable) BlendedRate() (float64, error) {
	rate, err := p.Rate(p.refModel())
	if err != nil {
		return 0, err
	}
	return (rate.InputPer1K + rate.OutputPer1K) / 2.0, nil
}

// SetModelRate sets the rate for a model. Intended for construction-time
// configuration, not runtime repricing of recorded usage.
func (p *PricingTable) SetModelRate(model string, rate ModelRate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Models[model] = rate
}

// ListModels returns all models with configured rates
func (p *PricingTable) ListModels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	models := make([]string, 0, len(p.Models))
	for model := range p.Models {
		models = append(models, model)
	}
	return models
}

func (p *PricingTable) refModel() string {
	if p.ReferenceModel == "" {
		return DefaultReferenceModel
	}
	return p.ReferenceModel
}

func copyRates(src map[string]ModelRate) map[string]ModelRate {
	dst := make(map[string]ModelRate, len(src))
	for model, rate := range src {
		dst[model] = rate
	}
	return dst
}
