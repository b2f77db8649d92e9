package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesSave_ConflictBecomesUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := domain.Profile{UserID: "user-1", BusinessName: "Bean There", OfficeSize: 5}
	saved, created, err := h.profiles.Save(ctx, &first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 5, saved.OfficeSize)

	second := domain.Profile{UserID: "user-1", BusinessName: "Bean There", OfficeSize: 9}
	saved, created, err = h.profiles.Save(ctx, &second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 9, saved.OfficeSize)

	all, err := h.profiles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProfilesUpdateField_ChangesExactlyOneField(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.onboard(t, "owner@cafe.test", "Bean There")

	before, err := h.profiles.Get(ctx, session.User.ID)
	require.NoError(t, err)

	tests := []struct {
		field domain.ProfileField
		raw   string
		check func(p *domain.Profile)
	}{
		{domain.FieldBusinessName, "  Bean Here ", func(p *domain.Profile) { assert.Equal(t, "Bean Here", p.BusinessName) }},
		{domain.FieldBusinessAddress, "2 Side St", func(p *domain.Profile) { assert.Equal(t, "2 Side St", p.BusinessAddress) }},
		{domain.FieldPointOfContact, "Sam", func(p *domain.Profile) { assert.Equal(t, "Sam", p.PointOfContact) }},
		{domain.FieldPhoneNumber, "555-0199", func(p *domain.Profile) { assert.Equal(t, "555-0199", p.PhoneNumber) }},
		{domain.FieldOfficeSize, "40", func(p *domain.Profile) { assert.Equal(t, 40, p.OfficeSize) }},
	}

	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			value, err := tt.field.Normalize(tt.raw)
			require.NoError(t, err)
			want := before.WithField(tt.field, value, before.UpdatedAt)

			updated, err := h.profiles.UpdateField(ctx, before, tt.field, tt.raw)
			require.NoError(t, err)
			tt.check(updated)
			assert.True(t, updated.UpdatedAt.After(before.UpdatedAt))

			got := *updated
			got.UpdatedAt = before.UpdatedAt
			assert.Equal(t, want, got, "only %s and updated_at may change", tt.field)

			before = updated
		})
	}
}

func TestProfilesUpdateField_SameValueOnlyTouchesUpdatedAt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.onboard(t, "owner@cafe.test", "Bean There")

	first, err := h.profiles.UpdateField(ctx, &domain.Profile{UserID: session.User.ID}, domain.FieldPhoneNumber, "555-0142")
	require.NoError(t, err)
	second, err := h.profiles.UpdateField(ctx, first, domain.FieldPhoneNumber, "555-0142")
	require.NoError(t, err)

	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	a, b := *first, *second
	a.UpdatedAt = b.UpdatedAt
	assert.Equal(t, a, b)
}

func TestProfilesUpdateField_RejectsInvalidValues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.onboard(t, "owner@cafe.test", "Bean There")
	p := &domain.Profile{UserID: session.User.ID}

	for _, tc := range []struct {
		field domain.ProfileField
		raw   string
	}{
		{domain.FieldBusinessName, "   "},
		{domain.FieldOfficeSize, "zero"},
		{domain.FieldOfficeSize, "0"},
	} {
		_, err := h.profiles.UpdateField(ctx, p, tc.field, tc.raw)
		var v *domain.ErrValidation
		assert.True(t, errors.As(err, &v), "%s=%q: got %v", tc.field, tc.raw, err)
	}

	after, err := h.profiles.Get(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bean There", after.BusinessName)
	assert.Equal(t, 12, after.OfficeSize)
}
