package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestsCreate_AlwaysPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, st := range []domain.Status{"", domain.StatusCompleted, domain.StatusInProgress, "bogus"} {
		in := domain.NewServiceRequest(domain.ServiceNitrogenRefill, "user-1", "owner@cafe.test", nil)
		in.Status = st
		created, err := h.requests.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, created.Status)
		assert.Equal(t, "Nitrogen Refill", created.ServiceName)
	}

	all, err := h.requests.ListAll(ctx)
	require.NoError(t, err)
	for _, r := range all {
		assert.Equal(t, domain.StatusPending, r.Status)
	}
	assert.EqualValues(t, 4, h.metrics.Snapshot().Created)
}

func TestRequestsCreate_PlaceholderIDWhenNotEchoed(t *testing.T) {
	h := newHarness(t)
	h.store.noEcho = true

	created, err := h.requests.Create(context.Background(),
		domain.NewServiceRequest(domain.ServiceCoffeeRefill, "user-1", "owner@cafe.test", nil))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.ID, "temp-"), created.ID)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestRequestsListByUser_NewestFirstCappedAtTen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 12; i++ {
		created, err := h.requests.Create(ctx, domain.NewServiceRequest(domain.ServiceCoffeeRefill, "user-1", "", nil))
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	_, err := h.requests.Create(ctx, domain.NewServiceRequest(domain.ServiceCoffeeRefill, "user-2", "", nil))
	require.NoError(t, err)

	mine, err := h.requests.ListByUser(ctx, "user-1", 50)
	require.NoError(t, err)
	require.Len(t, mine, 10)
	assert.Equal(t, ids[11], mine[0].ID)
	assert.Equal(t, ids[2], mine[9].ID)
	for i := 1; i < len(mine); i++ {
		assert.False(t, mine[i].CreatedAt.After(mine[i-1].CreatedAt))
	}

	all, err := h.requests.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 13)
}

func TestRequestsUpdateStatus_CompletedWithNotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.requests.Create(ctx, domain.NewServiceRequest(domain.ServiceKegeratorMaintenance, "user-1", "", nil))
	require.NoError(t, err)

	updated, err := h.requests.UpdateStatus(ctx, created.ID, domain.StatusCompleted, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)

	all, err := h.requests.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, created.ID, all[0].ID)
	assert.Equal(t, domain.StatusCompleted, all[0].Status)
	assert.Equal(t, "done", all[0].AdminNotes)
	assert.True(t, all[0].UpdatedAt.After(all[0].CreatedAt))
}

func TestRequestsUpdateStatus_EmptyNotesKeepExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.requests.Create(ctx, domain.NewServiceRequest(domain.ServiceCoffeeRefill, "user-1", "", nil))
	require.NoError(t, err)
	_, err = h.requests.UpdateStatus(ctx, created.ID, domain.StatusInProgress, "on the way")
	require.NoError(t, err)

	updated, err := h.requests.UpdateStatus(ctx, created.ID, domain.StatusCompleted, "   ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, "on the way", updated.AdminNotes)
}

func TestRequestsUpdateStatus_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.requests.UpdateStatus(ctx, "any", "archived", "")
	var v *domain.ErrValidation
	require.True(t, errors.As(err, &v), "got %v", err)

	_, err = h.requests.UpdateStatus(ctx, "missing", domain.StatusCompleted, "")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.EqualValues(t, 0, h.metrics.Snapshot().StatusUpdates)
}
