// Package memory provides in-process implementations of the storage and
// auth ports for local development and tests. It enforces the same
// constraints as the hosted schema (one profile per user, newest-first
// listings).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"github.com/google/uuid"
)

// Store holds profiles and service requests.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile // by user id
	requests []storedRequest
	seq      int64
	now      func() time.Time
}

type storedRequest struct {
	seq int64
	req domain.ServiceRequest
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		profiles: make(map[string]domain.Profile),
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// --- profiles ---

// GetProfile returns the user's profile or *domain.ErrNotFound.
func (s *Store) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	return &p, nil
}

// CreateProfile inserts a profile; a second one for the same user is a conflict.
func (s *Store) CreateProfile(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.UserID]; exists {
		return nil, &domain.ErrConflict{Message: `duplicate key value violates unique constraint "profiles_user_id_key"`}
	}
	row := *p
	row.ID = uuid.NewString()
	now := s.now()
	row.CreatedAt, row.UpdatedAt = now, now
	s.profiles[p.UserID] = row
	return &row, nil
}

// UpdateProfile applies the known columns in fields.
func (s *Store) UpdateProfile(_ context.Context, userID string, fields map[string]any) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	for col, v := range fields {
		switch col {
		case "business_name":
			p.BusinessName, _ = v.(string)
		case "business_address":
			p.BusinessAddress, _ = v.(string)
		case "point_of_contact":
			p.PointOfContact, _ = v.(string)
		case "phone_number":
			p.PhoneNumber, _ = v.(string)
		case "email":
			p.Email, _ = v.(string)
		case "office_size":
			p.OfficeSize, _ = v.(int)
		case "updated_at":
			p.UpdatedAt, _ = v.(time.Time)
		}
	}
	s.profiles[userID] = p
	return &p, nil
}

// ListProfiles returns every profile ordered by business name.
func (s *Store) ListProfiles(context.Context) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BusinessName == out[j].BusinessName {
			return out[i].UserID < out[j].UserID
		}
		return out[i].BusinessName < out[j].BusinessName
	})
	return out, nil
}

// --- service requests ---

// CreateRequest stores r with a fresh uuid and timestamps.
func (s *Store) CreateRequest(_ context.Context, r *domain.ServiceRequest) (*domain.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *r
	row.ID = uuid.NewString()
	now := s.now()
	row.CreatedAt, row.UpdatedAt = now, now
	s.seq++
	s.requests = append(s.requests, storedRequest{seq: s.seq, req: row})
	return &row, nil
}

// ListRequests returns matching requests newest first, insertion order breaking ties.
func (s *Store) ListRequests(_ context.Context, q domain.RequestQuery) ([]domain.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]storedRequest, 0, len(s.requests))
	for _, sr := range s.requests {
		r := sr.req
		if q.UserID != "" && r.UserID != q.UserID {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		if q.BusinessName != "" && r.BusinessName != q.BusinessName {
			continue
		}
		if q.ServiceType != "" && r.ServiceType != q.ServiceType {
			continue
		}
		matched = append(matched, sr)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.req.CreatedAt.Equal(b.req.CreatedAt) {
			return a.seq > b.seq
		}
		return a.req.CreatedAt.After(b.req.CreatedAt)
	})
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]domain.ServiceRequest, 0, len(matched))
	for _, sr := range matched {
		out = append(out, sr.req)
	}
	return out, nil
}

// UpdateRequest patches status, notes and updated_at of one request.
func (s *Store) UpdateRequest(_ context.Context, id string, fields map[string]any) (*domain.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.requests {
		r := &s.requests[i].req
		if r.ID != id {
			continue
		}
		for col, v := range fields {
			switch col {
			case "status":
				if st, ok := v.(string); ok {
					r.Status = domain.Status(st)
				}
			case "admin_notes":
				r.AdminNotes, _ = v.(string)
			case "updated_at":
				r.UpdatedAt, _ = v.(time.Time)
			}
		}
		out := *r
		return &out, nil
	}
	return nil, &domain.ErrNotFound{Resource: "service_request", ID: id}
}
