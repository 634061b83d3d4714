package ghl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL = "https://marketplace.leadconnectorhq.com/oauth/chooselocation"
	DefaultScope   = "contacts.write"
)

// OAuthConfig holds the marketplace app credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// BaseURL is the API host; the token endpoint is {BaseURL}/oauth/token.
	BaseURL string
	AuthURL string
	Scopes  []string
}

// Installation is the token set for one installed location.
type Installation struct {
	LocationID   string    `json:"locationId"`
	UserID       string    `json:"userId,omitempty"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType"`
	Scopes       string    `json:"scopes"`
	Expiry       time.Time `json:"expiry"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Token converts the installation back into an oauth2 token.
func (in Installation) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		TokenType:    in.TokenType,
		Expiry:       in.Expiry,
	}
}

// InstallationStore persists installations across runs.
type InstallationStore interface {
	SaveInstallation(ctx context.Context, in Installation) error
	LoadInstallation(ctx context.Context, locationID string) (*Installation, error)
}

type OAuth struct {
	cfg oauth2.Config
}

func NewOAuth(c OAuthConfig) (*OAuth, error) {
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return nil, errors.New("ghl oauth: client id and secret are required")
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	authURL := strings.TrimSpace(c.AuthURL)
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}
	return &OAuth{cfg: oauth2.Config{
		ClientID:     strings.TrimSpace(c.ClientID),
		ClientSecret: strings.TrimSpace(c.ClientSecret),
		RedirectURL:  strings.TrimSpace(c.RedirectURL),
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  base + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}}, nil
}

// AuthCodeURL is the location chooser URL the installing user visits.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state)
}

// Exchange redeems an authorization code. The token response names the installed location.
func (o *OAuth) Exchange(ctx context.Context, code string) (*Installation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("ghl oauth: code is required")
	}
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("ghl oauth: exchange code: %w", err)
	}
	in := installationFromToken(tok, "")
	if in.LocationID == "" {
		return nil, errors.New("ghl oauth: token response has no locationId")
	}
	return &in, nil
}

// TokenSource returns a source that refreshes in's token when it expires and saves each
// rotated token to store. GoHighLevel refresh tokens are single-use, so losing a rotated one
// forces a reinstall.
func (o *OAuth) TokenSource(ctx context.Context, in Installation, store InstallationStore) oauth2.TokenSource {
	return &persistingSource{
		ctx:   ctx,
		base:  o.cfg.TokenSource(ctx, in.Token()),
		store: store,
		last:  in,
	}
}

type persistingSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	store InstallationStore

	mu   sync.Mutex
	last Installation
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("ghl oauth: refresh token: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last.AccessToken {
		return tok, nil
	}
	next := installationFromToken(tok, p.last.LocationID)
	if next.UserID == "" {
		next.UserID = p.last.UserID
	}
	if next.Scopes == "" {
		next.Scopes = p.last.Scopes
	}
	if p.store != nil {
		if err := p.store.SaveInstallation(p.ctx, next); err != nil {
			return nil, fmt.Errorf("ghl oauth: persist refreshed token: %w", err)
		}
	}
	p.last = next
	return tok, nil
}

func installationFromToken(tok *oauth2.Token, fallbackLocation string) Installation {
	extra := func(key string) string {
		if v, ok := tok.Extra(key).(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	location := extra("locationId")
	if location == "" {
		location = fallbackLocation
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return Installation{
		LocationID:   location,
		UserID:       extra("userId"),
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tokenType,
		Scopes:       extra("scope"),
		Expiry:       tok.Expiry,
		UpdatedAt:    time.Now().UTC(),
	}
}
