// Package postgres stores profiles and service requests directly in
// PostgreSQL through a pgx pool, against the same tables Supabase exposes.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("postgres")

const (
	codeUniqueViolation = "23505"
	codeInvalidTextRepr = "22P02"
	codeCheckViolation  = "23514"
)

// Store implements the profile and request ports on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses dsn, connects and pings.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	return nil
}

// mapErr converts driver errors into domain errors.
func mapErr(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return &domain.ErrConflict{Message: pgErr.Message}
		case codeInvalidTextRepr:
			return &domain.ErrNotFound{Resource: resource, ID: id}
		case codeCheckViolation:
			return &domain.ErrValidation{Message: pgErr.Message}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "postgres/" + resource}
	}
	return &domain.ErrExternalService{Service: "postgres/" + resource, Err: err}
}

// setClause renders "col = $n" pairs for the allowed columns in fields,
// in a stable order, starting at placeholder $start.
func setClause(fields map[string]any, allowed map[string]bool, start int) (string, []any, error) {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !allowed[col] {
			return "", nil, &domain.ErrValidation{Field: col, Message: "column cannot be updated"}
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return "", nil, &domain.ErrValidation{Message: "nothing to update"}
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		parts = append(parts, col+" = $"+strconv.Itoa(start+i))
		args = append(args, fields[col])
	}
	return strings.Join(parts, ", "), args, nil
}

// ============================================================
// Profiles
// ============================================================

const profileColumns = `id::text, user_id, business_name, business_address, office_size,
	point_of_contact, phone_number, email, created_at, updated_at`

var profileUpdatable = map[string]bool{
	"business_name":    true,
	"business_address": true,
	"office_size":      true,
	"point_of_contact": true,
	"phone_number":     true,
	"email":            true,
	"updated_at":       true,
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.UserID, &p.BusinessName, &p.BusinessAddress, &p.OfficeSize,
		&p.PointOfContact, &p.PhoneNumber, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetProfile fetches the profile owned by userID.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		return nil, mapErr(err, "profile", userID)
	}
	return &p, nil
}

// CreateProfile inserts a profile. The unique user_id constraint surfaces
// as *domain.ErrConflict.
func (s *Store) CreateProfile(ctx context.Context, in *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", in.UserID))

	const insertSQL = `
		INSERT INTO profiles (user_id, business_name, business_address, office_size, point_of_contact, phone_number, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + profileColumns

	p, err := scanProfile(s.pool.QueryRow(ctx, insertSQL,
		in.UserID, in.BusinessName, in.BusinessAddress, in.OfficeSize, in.PointOfContact, in.PhoneNumber, in.Email))
	if err != nil {
		return nil, mapErr(err, "profile", in.UserID)
	}
	return &p, nil
}

// UpdateProfile patches the profile owned by userID.
func (s *Store) UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	set, args, err := setClause(fields, profileUpdatable, 2)
	if err != nil {
		return nil, err
	}
	q := `UPDATE profiles SET ` + set + ` WHERE user_id = $1 RETURNING ` + profileColumns

	p, err := scanProfile(s.pool.QueryRow(ctx, q, append([]any{userID}, args...)...))
	if err != nil {
		return nil, mapErr(err, "profile", userID)
	}
	return &p, nil
}

// ListProfiles returns every profile ordered by business name.
func (s *Store) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListProfiles")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY business_name ASC, user_id ASC`)
	if err != nil {
		return nil, mapErr(err, "profiles", "")
	}
	defer rows.Close()

	out := []domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, mapErr(err, "profiles", "")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "profiles", "")
	}
	return out, nil
}

// ============================================================
// Service requests
// ============================================================

const requestColumns = `id::text, user_id, service_type, service_name, business_name, business_address,
	email, status, COALESCE(admin_notes, ''), created_at, updated_at`

var requestUpdatable = map[string]bool{
	"status":      true,
	"admin_notes": true,
	"updated_at":  true,
}

func scanRequest(row pgx.Row) (domain.ServiceRequest, error) {
	var r domain.ServiceRequest
	var serviceType, status string
	err := row.Scan(&r.ID, &r.UserID, &serviceType, &r.ServiceName, &r.BusinessName, &r.BusinessAddress,
		&r.Email, &status, &r.AdminNotes, &r.CreatedAt, &r.UpdatedAt)
	r.ServiceType = domain.ServiceType(serviceType)
	r.Status = domain.Status(status)
	return r, err
}

// CreateRequest inserts a service request and returns the stored row.
func (s *Store) CreateRequest(ctx context.Context, in *domain.ServiceRequest) (*domain.ServiceRequest, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateRequest")
	defer span.End()
	span.SetAttributes(attribute.String("service.type", string(in.ServiceType)))

	const insertSQL = `
		INSERT INTO service_requests (user_id, service_type, service_name, business_name, business_address,
			email, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + requestColumns

	r, err := scanRequest(s.pool.QueryRow(ctx, insertSQL,
		in.UserID, string(in.ServiceType), in.ServiceName, in.BusinessName, in.BusinessAddress,
		in.Email, string(in.Status)))
	if err != nil {
		return nil, mapErr(err, "service_request", "")
	}
	return &r, nil
}

// ListRequests returns matching requests newest first.
func (s *Store) ListRequests(ctx context.Context, q domain.RequestQuery) ([]domain.ServiceRequest, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListRequests")
	defer span.End()

	var (
		where []string
		args  []any
	)
	add := func(col, val string) {
		args = append(args, val)
		where = append(where, col+" = $"+strconv.Itoa(len(args)))
	}
	if q.UserID != "" {
		add("user_id", q.UserID)
	}
	if q.Status != "" {
		add("status", string(q.Status))
	}
	if q.BusinessName != "" {
		add("business_name", q.BusinessName)
	}
	if q.ServiceType != "" {
		add("service_type", string(q.ServiceType))
	}

	sql := `SELECT ` + requestColumns + ` FROM service_requests`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, seq DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "service_requests", q.UserID)
	}
	defer rows.Close()

	out := []domain.ServiceRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, mapErr(err, "service_requests", q.UserID)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "service_requests", q.UserID)
	}
	return out, nil
}

// UpdateRequest patches one request by id.
func (s *Store) UpdateRequest(ctx context.Context, id string, fields map[string]any) (*domain.ServiceRequest, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateRequest")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", id))

	set, args, err := setClause(fields, requestUpdatable, 2)
	if err != nil {
		return nil, err
	}
	q := `UPDATE service_requests SET ` + set + ` WHERE id = $1::uuid RETURNING ` + requestColumns

	r, err := scanRequest(s.pool.QueryRow(ctx, q, append([]any{id}, args...)...))
	if err != nil {
		return nil, mapErr(err, "service_request", id)
	}
	return &r, nil
}
