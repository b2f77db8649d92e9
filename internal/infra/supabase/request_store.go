package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// RequestStore implementation: service_requests via PostgREST
// ============================================================

const requestsTable = "service_requests"

// rowID accepts both uuid and bigint primary keys.
type rowID string

func (id *rowID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = rowID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = rowID(n.String())
	return nil
}

// supabaseRequest maps service_requests columns.
type supabaseRequest struct {
	ID              rowID     `json:"id"`
	UserID          string    `json:"user_id"`
	ServiceType     string    `json:"service_type"`
	ServiceName     string    `json:"service_name"`
	BusinessName    string    `json:"business_name"`
	BusinessAddress string    `json:"business_address"`
	Email           string    `json:"email"`
	Status          string    `json:"status"`
	AdminNotes      *string   `json:"admin_notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (r supabaseRequest) toDomain() domain.ServiceRequest {
	out := domain.ServiceRequest{
		ID:              string(r.ID),
		UserID:          r.UserID,
		ServiceType:     domain.ServiceType(r.ServiceType),
		ServiceName:     r.ServiceName,
		BusinessName:    r.BusinessName,
		BusinessAddress: r.BusinessAddress,
		Email:           r.Email,
		Status:          domain.Status(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.AdminNotes != nil {
		out.AdminNotes = *r.AdminNotes
	}
	return out
}

func decodeRequests(body []byte) ([]domain.ServiceRequest, error) {
	if isEmpty(body) {
		return []domain.ServiceRequest{}, nil
	}
	var rows []supabaseRequest
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode service_requests: %w", err)
	}
	out := make([]domain.ServiceRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// requestQueryPath renders a RequestQuery as PostgREST filters.
func requestQueryPath(q domain.RequestQuery) string {
	v := url.Values{}
	v.Set("select", "*")
	if q.UserID != "" {
		v.Set("user_id", "eq."+q.UserID)
	}
	if q.Status != "" {
		v.Set("status", "eq."+string(q.Status))
	}
	if q.BusinessName != "" {
		v.Set("business_name", "eq."+q.BusinessName)
	}
	if q.ServiceType != "" {
		v.Set("service_type", "eq."+string(q.ServiceType))
	}
	v.Set("order", "created_at.desc")
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return requestsTable + "?" + v.Encode()
}

// CreateRequest inserts a service request. Returns nil when PostgREST
// echoes no row. The insert is attempted once.
func (c *Client) CreateRequest(ctx context.Context, r *domain.ServiceRequest) (*domain.ServiceRequest, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRequest")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", r.UserID),
		attribute.String("service.type", string(r.ServiceType)),
	)

	var created *domain.ServiceRequest
	err := c.executeOnce(ctx, "supabase/service_requests", func() error {
		body, err := c.rest(ctx, http.MethodPost, requestsTable, r.Columns(), "")
		if err != nil {
			if e, ok := asAPIError(err); ok {
				return classify(e, "service_request", "")
			}
			return err
		}

		rows, err := decodeRequests(body)
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
	return created, nil
}

// ListRequests returns matching requests newest first.
func (c *Client) ListRequests(ctx context.Context, q domain.RequestQuery) ([]domain.ServiceRequest, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRequests")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", q.UserID),
		attribute.Int("limit", q.Limit),
	)

	var requests []domain.ServiceRequest
	err := c.execute(ctx, "supabase/service_requests", func() error {
		body, err := c.rest(ctx, http.MethodGet, requestQueryPath(q), nil, "")
		if err != nil {
			if e, ok := asAPIError(err); ok {
				return classify(e, "service_requests", q.UserID)
			}
			return err
		}
		requests, err = decodeRequests(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// UpdateRequest patches one request by id.
func (c *Client) UpdateRequest(ctx context.Context, id string, fields map[string]any) (*domain.ServiceRequest, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateRequest")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", id))

	var updated *domain.ServiceRequest
	err := c.execute(ctx, "supabase/service_requests", func() error {
		path := fmt.Sprintf("%s?id=eq.%s", requestsTable, url.QueryEscape(id))
		body, err := c.rest(ctx, http.MethodPatch, path, fields, "")
		if err != nil {
			if e, ok := asAPIError(err); ok {
				return classify(e, "service_request", id)
			}
			return err
		}

		rows, err := decodeRequests(body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return notFound("service_request", id)
		}
		updated = &rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
