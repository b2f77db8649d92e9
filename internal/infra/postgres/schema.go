package postgres

import (
	"context"
	"fmt"
)

// Schema creates the tables the portal reads and writes. It mirrors the
// Supabase project so either backend can serve the same data.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id               uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id          text NOT NULL,
	business_name    text NOT NULL DEFAULT '',
	business_address text NOT NULL DEFAULT '',
	office_size      integer NOT NULL DEFAULT 0,
	point_of_contact text NOT NULL DEFAULT '',
	phone_number     text NOT NULL DEFAULT '',
	email            text NOT NULL DEFAULT '',
	created_at       timestamptz NOT NULL DEFAULT now(),
	updated_at       timestamptz NOT NULL DEFAULT now(),
	CONSTRAINT profiles_user_id_key UNIQUE (user_id)
);

CREATE TABLE IF NOT EXISTS service_requests (
	id               uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	seq              bigserial,
	user_id          text NOT NULL,
	service_type     text NOT NULL,
	service_name     text NOT NULL DEFAULT '',
	business_name    text NOT NULL DEFAULT '',
	business_address text NOT NULL DEFAULT '',
	email            text NOT NULL DEFAULT '',
	status           text NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'in-progress', 'completed')),
	admin_notes      text,
	created_at       timestamptz NOT NULL DEFAULT now(),
	updated_at       timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS service_requests_user_created_idx
	ON service_requests (user_id, created_at DESC);
`

// Migrate applies Schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
