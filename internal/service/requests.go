package service

import (
	"context"
	"strings"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"
	"github.com/strangerdangercoffee/portal/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DashboardLimit caps the customer's request history.
const DashboardLimit = 10

// Requests adapts a RequestStore to the request lifecycle rules.
type Requests struct {
	store   port.RequestStore
	now     func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRequests creates the request adapter.
func NewRequests(store port.RequestStore, metrics *observability.Metrics, logger *zap.Logger) *Requests {
	return &Requests{store: store, now: time.Now, metrics: metrics, logger: logger}
}

// WithClock overrides the timestamp source.
func (r *Requests) WithClock(now func() time.Time) *Requests {
	r.now = now
	return r
}

// Create persists r as pending. When the store does not echo the row a
// placeholder id is assigned so the caller and the notification agree.
func (r *Requests) Create(ctx context.Context, req domain.ServiceRequest) (*domain.ServiceRequest, error) {
	ctx, span := tracer.Start(ctx, "Requests.Create")
	defer span.End()
	span.SetAttributes(attribute.String("service.type", string(req.ServiceType)))

	req.Status = domain.StatusPending
	if req.ServiceName == "" {
		req.ServiceName = req.ServiceType.DisplayName()
	}

	created, err := r.store.CreateRequest(ctx, &req)
	if err != nil {
		return nil, err
	}
	if created == nil || created.ID == "" {
		at := r.now().UTC()
		fallback := req
		if created != nil {
			fallback = *created
		}
		fallback.ID = domain.PlaceholderRequestID(at)
		if fallback.CreatedAt.IsZero() {
			fallback.CreatedAt = at
			fallback.UpdatedAt = at
		}
		r.logger.Warn("store did not return the new request, using placeholder id",
			zap.String("request_id", fallback.ID),
		)
		created = &fallback
	}

	r.metrics.IncrRequestCreated(created.ServiceType)
	return created, nil
}

// ListByUser returns the user's newest requests, at most DashboardLimit.
func (r *Requests) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ServiceRequest, error) {
	if limit <= 0 || limit > DashboardLimit {
		limit = DashboardLimit
	}
	return r.store.ListRequests(ctx, domain.RequestQuery{UserID: userID, Limit: limit})
}

// ListAll returns every request newest first.
func (r *Requests) ListAll(ctx context.Context) ([]domain.ServiceRequest, error) {
	return r.store.ListRequests(ctx, domain.RequestQuery{})
}

// UpdateStatus sets the status and stamps updated_at. Notes are written
// only when non-empty.
func (r *Requests) UpdateStatus(ctx context.Context, id string, status domain.Status, notes string) (*domain.ServiceRequest, error) {
	ctx, span := tracer.Start(ctx, "Requests.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", id), attribute.String("status", string(status)))

	st, err := domain.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"status":     string(st),
		"updated_at": r.now().UTC(),
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		fields["admin_notes"] = notes
	}

	updated, err := r.store.UpdateRequest(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	r.metrics.IncrStatusUpdate(st)
	return updated, nil
}
