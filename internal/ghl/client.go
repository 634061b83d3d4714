// Package ghl imports contacts into GoHighLevel: smart-list tags, contact creation, and the
// OAuth flow that yields the access token for both.
package ghl

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shpitdev/leadfinder/internal/httpx"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://services.leadconnectorhq.com"
	APIVersion     = "2021-07-28"

	service = "ghl"
)

// Config configures a Client. Exactly one of AccessToken or TokenSource is needed.
type Config struct {
	BaseURL    string
	LocationID string

	AccessToken string
	TokenSource oauth2.TokenSource

	// Transport is the base transport under the OAuth2 transport. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
	Timeout   time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	locationID string
	http       *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("ghl: base url must be absolute")
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errors.New("ghl: location id is required")
	}
	ts := cfg.TokenSource
	if ts == nil {
		token := strings.TrimSpace(cfg.AccessToken)
		if token == "" {
			return nil, errors.New("ghl: access token is required")
		}
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	}
	baseTransport := cfg.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    base,
		locationID: locationID,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: ts, Base: baseTransport},
			Timeout:   timeout,
		},
	}, nil
}

// LocationID is the sub-account contacts are created in.
func (c *Client) LocationID() string {
	return c.locationID
}

// Tag is the subset of the tag resource the importer reads back.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tagRequest struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
}

// CreateTag creates a location tag.
func (c *Client) CreateTag(ctx context.Context, name, color string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("ghl createTag: name is required")
	}
	var out struct {
		Tag Tag `json:"tag"`
	}
	err := c.post(ctx, "createTag", "/contacts/tags", tagRequest{LocationID: c.locationID, Name: name, Color: color}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Tag, nil
}

// CreatedContact is the subset of the contact resource the importer reads back.
type CreatedContact struct {
	ID string `json:"id"`
}

// CreateContact creates one contact. The payload's LocationID is forced to the client's.
func (c *Client) CreateContact(ctx context.Context, p ContactPayload) (*CreatedContact, error) {
	p.LocationID = c.locationID
	var out struct {
		Contact CreatedContact `json:"contact"`
	}
	if err := c.post(ctx, "createContact", "/contacts/", p, &out); err != nil {
		return nil, err
	}
	return &out.Contact, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	h := http.Header{}
	h.Set("Version", APIVersion)
	return httpx.DoJSON(ctx, c.http, httpx.Request{
		Service: service,
		Op:      op,
		Method:  http.MethodPost,
		URL:     c.baseURL + path,
		Header:  h,
		Body:    body,
	}, out)
}
