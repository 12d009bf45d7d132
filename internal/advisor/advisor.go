// Package advisor asks a Gemini model for purchase proposals. Its output is
// untrusted: the allocator still applies every rule to it.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"text/template"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"ETFSentinel/internal/model"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("advisor returned an empty response")

// generator is the subset of *genai.Models the advisor needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Advisor builds the prompt, calls the model and decodes its advice.
type Advisor struct {
	gen         generator
	model       string
	temperature float32
	rules       model.AllocationRules
	log         zerolog.Logger
}

// New returns an Advisor backed by the Gemini client.
func New(client *genai.Client, modelName string, temperature float32, rules model.AllocationRules, log zerolog.Logger) *Advisor {
	return newAdvisor(client.Models, modelName, temperature, rules, log)
}

func newAdvisor(gen generator, modelName string, temperature float32, rules model.AllocationRules, log zerolog.Logger) *Advisor {
	return &Advisor{
		gen:         gen,
		model:       modelName,
		temperature: temperature,
		rules:       rules,
		log:         log.With().Str("component", "advisor").Logger(),
	}
}

// Suggest asks the model which instruments to buy given the current context.
func (a *Advisor) Suggest(ctx context.Context, req model.AdviceRequest) (*model.Advice, error) {
	prompt, err := buildPrompt(a.rules, req)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := a.gen.GenerateContent(ctx, a.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(a.temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	advice, err := parseAdvice(text)
	if err != nil {
		return nil, err
	}
	a.log.Info().Int("buy", len(advice.Buy)).Int("skip", len(advice.Skip)).Msg("advice received")
	return advice, nil
}

// parseAdvice decodes the model answer, tolerating a markdown code fence.
func parseAdvice(text string) (*model.Advice, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	var advice model.Advice
	if err := json.Unmarshal([]byte(text), &advice); err != nil {
		return nil, fmt.Errorf("decode advice: %w", err)
	}
	return &advice, nil
}

type promptMarket struct {
	Symbol    string     `json:"symbol"`
	Category  string     `json:"category"`
	Price     float64    `json:"price"`
	ChangePct float64    `json:"change_pct"`
	Zone      model.Zone `json:"zone"`
}

type promptHolding struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"qty"`
	Invested float64 `json:"invested"`
}

var promptTmpl = template.Must(template.New("prompt").Parse(`You are an ETF dip-buy execution engine.

Rules:
- Buy only if daily change <= {{.Rules.Zones.Normal}}%
- NEVER buy if an ETF is above +{{.Rules.Zones.SkipAbove}}%
- Prefer core > global > sector > commodity
- Avoid over-allocating silver (max {{.Rules.Caps.Silver}}% of the portfolio)
- Monthly budget ₹{{printf "%.0f" .Rules.MonthlyBudget}}
- Minimum purchase ₹{{printf "%.0f" .Rules.MinPurchase}}
- Buy whole units only
- This is a dip-buy strategy

Holdings:
{{.Holdings}}

Market:
{{.Market}}

Cash: ₹{{printf "%.0f" .Cash}}

Respond ONLY with RAW JSON in this format:
{"buy":[{"symbol":"...","qty":1,"price":224.98,"amount":500,"reason":"..."}],"skip":["..."]}
No markdown. No text before or after the JSON.`))

func buildPrompt(rules model.AllocationRules, req model.AdviceRequest) (string, error) {
	market := make([]promptMarket, 0, len(req.Observations))
	for _, obs := range req.Observations {
		inst, _ := model.FindInstrument(req.Instruments, obs.Symbol)
		market = append(market, promptMarket{
			Symbol:    obs.Symbol,
			Category:  string(inst.Category),
			Price:     obs.Price,
			ChangePct: math.Round(obs.ChangePct*100) / 100,
			Zone:      req.Zones[obs.Symbol],
		})
	}
	holdings := make([]promptHolding, 0, len(req.Holdings))
	for _, inst := range model.ByPriority(req.Instruments) {
		if h, ok := req.Holdings[inst.Symbol]; ok {
			holdings = append(holdings, promptHolding{Symbol: inst.Symbol, Quantity: h.Quantity, Invested: h.Invested})
		}
	}

	mj, err := json.MarshalIndent(market, "", "  ")
	if err != nil {
		return "", err
	}
	hj, err := json.MarshalIndent(holdings, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	err = promptTmpl.Execute(&b, map[string]any{
		"Rules":    rules,
		"Holdings": string(hj),
		"Market":   string(mj),
		"Cash":     req.Cash,
	})
	return b.String(), err
}
