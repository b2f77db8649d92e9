package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// ProfileStore implementation: profiles table via PostgREST
// ============================================================

const profilesTable = "profiles"

func decodeProfiles(body []byte) ([]domain.Profile, error) {
	if isEmpty(body) {
		return []domain.Profile{}, nil
	}
	var rows []domain.Profile
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	return rows, nil
}

// GetProfile fetches the profile owned by userID.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var profile *domain.Profile
	err := c.execute(ctx, "supabase/profiles", func() error {
		path := fmt.Sprintf("%s?user_id=eq.%s&limit=1", profilesTable, url.QueryEscape(userID))
		body, err := c.rest(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			if e, ok := asAPIError(err); ok {
				return classify(e, "profile", userID)
			}
			return err
		}

		rows, err := decodeProfiles(body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return notFound("profile", userID)
		}
		profile = &rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// CreateProfile inserts a new profile. A second row for the same user_id
// violates the unique constraint and surfaces as *domain.ErrConflict.
func (c *Client) CreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", p.UserID))

	data := p.Columns()
	data["user_id"] = p.UserID

	var created *domain.Profile
	err := c.executeOnce(ctx, "supabase/profiles", func() error {
		body, err := c.rest(ctx, http.MethodPost, profilesTable, data, "")
		if err != nil {
			if e, ok := asAPIError(err); ok {
				return classify(e, "profile", p.UserID)
			}
			return err
		}

		rows, err := decodeProfiles(body)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			created = &rows[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created == nil {
		cp := *p
		created = &cp
	}
	return created, nil
}

// UpdateProfile patches the profile owned by userID.
func (c *Client) UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var updated *domain.Profile
	err := c.execute(ctx, "supabase/profiles", func() error {
		path := fmt.Sprintf("%s?user_id=eq.%s", profilesTable, url.QueryEscape(userID))
		body, err := c.rest(ctx, http.MethodPatch, path, fields, "")
		if err != nil {
			if e, ok := asAPIError(err); ok {
				return classify(e, "profile", userID)
			}
			return err
		}

		rows, err := decodeProfiles(body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return notFound("profile", userID)
		}
		updated = &rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListProfiles returns every profile ordered by business name.
func (c *Client) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProfiles")
	defer span.End()

	var profiles []domain.Profile
	err := c.execute(ctx, "supabase/profiles", func() error {
		body, err := c.rest(ctx, http.MethodGet, profilesTable+"?select=*&order=business_name.asc", nil, "")
		if err != nil {
			if e, ok := asAPIError(err); ok {
				return classify(e, "profiles", "")
			}
			return err
		}
		profiles, err = decodeProfiles(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
