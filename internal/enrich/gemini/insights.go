// Package gemini writes short business insights for enriched records with Gemini.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/shpitdev/leadfinder/internal/core"
	"google.golang.org/genai"
)

// maxPageChars bounds how much page text goes into the prompt.
const maxPageChars = 6000

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// Grounded lets the model use Google Search for businesses the page text doesn't cover.
	Grounded bool
}

// Input is what the model sees about one business.
type Input struct {
	Name     string
	URL      string
	Summary  string
	PageText string
}

// Insights is the structured model output.
type Insights struct {
	Summary    string   `json:"summary"`
	Industry   string   `json:"industry"`
	Services   []string `json:"services"`
	Confidence string   `json:"confidence"`
}

// Text renders the insights as the single line stored on an enrichment row.
func (i Insights) Text() string {
	var parts []string
	if v := strings.TrimSpace(i.Summary); v != "" {
		parts = append(parts, v)
	}
	if i.Industry != "" {
		parts = append(parts, "Industry: "+i.Industry+".")
	}
	if len(i.Services) > 0 {
		parts = append(parts, "Services: "+strings.Join(i.Services, ", ")+".")
	}
	return strings.Join(parts, " ")
}

type Generator struct {
	client   *genai.Client
	model    string
	grounded bool
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Generator{
		client:   client,
		model:    strings.TrimSpace(cfg.Model),
		grounded: cfg.Grounded,
	}, nil
}

// Model is the model name results are attributed to.
func (g *Generator) Model() string {
	return g.model
}

var outputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary":    {Type: genai.TypeString},
		"industry":   {Type: genai.TypeString},
		"services":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"confidence": {Type: genai.TypeString},
	},
	Required: []string{"summary", "industry", "services", "confidence"},
}

func (g *Generator) Generate(ctx context.Context, in Input) (Insights, error) {
	if strings.TrimSpace(in.Name) == "" && strings.TrimSpace(in.URL) == "" {
		return Insights{}, errors.New("gemini: business name or url is required")
	}

	cfg := &genai.GenerateContentConfig{
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
		ResponseSchema:   outputSchema,
	}
	if g.grounded {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(in)), cfg)
	if err != nil {
		return Insights{}, classifyErr(err)
	}
	return ParseInsights(resp.Text())
}

// ParseInsights decodes model output, tolerating a fenced ```json block.
func ParseInsights(raw string) (Insights, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	var out Insights
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return Insights{}, fmt.Errorf("gemini: parse structured json: %w", err)
	}
	out.Summary = strings.TrimSpace(out.Summary)
	out.Industry = strings.TrimSpace(out.Industry)
	out.Confidence = strings.ToLower(strings.TrimSpace(out.Confidence))
	out.Services = dedupePreserveOrder(out.Services)
	return out, nil
}

// BuildPrompt renders the prompt for one business. Page text is clipped.
func BuildPrompt(in Input) string {
	page := strings.TrimSpace(in.PageText)
	if utf8.RuneCountInString(page) > maxPageChars {
		page = string([]rune(page)[:maxPageChars])
	}
	return strings.TrimSpace(`
You are a sales research assistant. Given what is known about a local business, write a short
factual profile a salesperson can skim before calling.

Return ONLY a single JSON object with these keys:
- summary (string; at most two sentences)
- industry (string)
- services (array of strings; at most five)
- confidence (string; one of: low, medium, high)

Rules:
- Use only the information below (and search results if available). Do not guess contact details.
- If you cannot determine a field, use an empty string or empty array.
- Do not include extra keys.

Business name: ` + strings.TrimSpace(in.Name) + `
Website: ` + strings.TrimSpace(in.URL) + `
Known summary: ` + strings.TrimSpace(in.Summary) + `
Page text:
` + page + `
`)
}

func classifyErr(err error) error {
	// Wrap transient failures so the worker pool will retry with backoff.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &core.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &core.TransientError{Err: err}
	}
	return err
}

func dedupePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
