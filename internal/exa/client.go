// Package exa is a small client for the Exa neural search API: /search and /contents.
package exa

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shpitdev/leadfinder/internal/httpx"
)

const (
	DefaultBaseURL = "https://api.exa.ai"

	service      = "exa"
	officialHost = "api.exa.ai"
)

// Config configures a Client.
type Config struct {
	APIKey string
	// BaseURL defaults to DefaultBaseURL. Any other host is treated as a proxy and also
	// receives the key as a bearer token.
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client talks to Exa. It is safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	proxy   bool
	http    *http.Client
}

func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("exa: api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("exa: base url must be absolute")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: base,
		proxy:   !strings.EqualFold(u.Hostname(), officialHost),
		http:    hc,
	}, nil
}

// ContentsOptions selects which page contents Exa returns alongside results.
type ContentsOptions struct {
	Text       bool `json:"text,omitempty"`
	Highlights bool `json:"highlights,omitempty"`
	Summary    bool `json:"summary,omitempty"`
}

func (o ContentsOptions) empty() bool {
	return !o.Text && !o.Highlights && !o.Summary
}

// SearchRequest is the /search body. Zero values are omitted from the wire.
type SearchRequest struct {
	Query          string           `json:"query"`
	NumResults     int              `json:"numResults,omitempty"`
	Type           string           `json:"type,omitempty"`
	UseAutoprompt  bool             `json:"useAutoprompt"`
	IncludeDomains []string         `json:"includeDomains,omitempty"`
	ExcludeDomains []string         `json:"excludeDomains,omitempty"`
	StartCrawlDate string           `json:"startCrawlDate,omitempty"`
	EndCrawlDate   string           `json:"endCrawlDate,omitempty"`
	Contents       *ContentsOptions `json:"contents,omitempty"`
}

// Result is one ranked page. Text, Summary and Highlights are present only when requested.
type Result struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Author        string   `json:"author,omitempty"`
	Text          string   `json:"text,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Highlights    []string `json:"highlights,omitempty"`
}

type SearchResponse struct {
	Results          []Result `json:"results"`
	RequestID        string   `json:"requestId,omitempty"`
	AutopromptString string   `json:"autopromptString,omitempty"`
}

// Search runs a neural/keyword search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("exa search: query is required")
	}
	if req.Contents != nil && req.Contents.empty() {
		req.Contents = nil
	}
	var out SearchResponse
	if err := c.post(ctx, "search", "/search", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type contentsRequest struct {
	URLs    []string `json:"urls"`
	Text    bool     `json:"text,omitempty"`
	Summary bool     `json:"summary,omitempty"`
}

type ContentsResponse struct {
	Results   []Result `json:"results"`
	RequestID string   `json:"requestId,omitempty"`
}

// Contents fetches page contents for known URLs.
func (c *Client) Contents(ctx context.Context, urls []string, opts ContentsOptions) (*ContentsResponse, error) {
	clean := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) == 0 {
		return nil, errors.New("exa contents: at least one url is required")
	}
	var out ContentsResponse
	body := contentsRequest{URLs: clean, Text: opts.Text, Summary: opts.Summary}
	if err := c.post(ctx, "contents", "/contents", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	if c.proxy {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	return httpx.DoJSON(ctx, c.http, httpx.Request{
		Service: service,
		Op:      op,
		Method:  http.MethodPost,
		URL:     c.baseURL + path,
		Header:  h,
		Body:    body,
	}, out)
}
