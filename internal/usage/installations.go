package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shpitdev/leadfinder/internal/ghl"
)

// ErrNoInstallation is returned when a location has never been authorized.
var ErrNoInstallation = errors.New("no installation found")

var _ ghl.InstallationStore = (*Store)(nil)

// SaveInstallation upserts the token set for a location.
func (s *Store) SaveInstallation(ctx context.Context, in ghl.Installation) error {
	if strings.TrimSpace(in.LocationID) == "" {
		return fmt.Errorf("installation location id is required")
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = s.clock()
	}
	return s.exec(ctx, `INSERT INTO installations
		(location_id, user_id, access_token, refresh_token, token_type, scopes, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id) DO UPDATE SET
			user_id = excluded.user_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			scopes = excluded.scopes,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at`,
		in.LocationID, in.UserID, in.AccessToken, in.RefreshToken, in.TokenType, in.Scopes,
		formatTime(in.Expiry), formatTime(in.UpdatedAt))
}

// LoadInstallation returns the stored token set for a location, or ErrNoInstallation.
func (s *Store) LoadInstallation(ctx context.Context, locationID string) (*ghl.Installation, error) {
	var in ghl.Installation
	var expiry, updated string
	err := s.db.QueryRowContext(ctx, `SELECT location_id, user_id, access_token, refresh_token,
		token_type, scopes, expiry, updated_at FROM installations WHERE location_id = ?`, locationID).
		Scan(&in.LocationID, &in.UserID, &in.AccessToken, &in.RefreshToken, &in.TokenType,
			&in.Scopes, &expiry, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoInstallation
	}
	if err != nil {
		return nil, fmt.Errorf("load installation: %w", err)
	}
	if in.Expiry, err = parseTime(expiry); err != nil {
		return nil, err
	}
	if in.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &in, nil
}
