package certification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk/internal/sentinel"
)

func TestCreateRejectsDuplicateName(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "Forklift")
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = store.Create(ctx, "Forklift")
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	certs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, certs, 1)
}

func TestAssignIsIdempotentRejecting(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	certID, err := store.Create(ctx, "First Aid")
	require.NoError(t, err)

	require.NoError(t, store.Assign(ctx, 1, certID))
	err = store.Assign(ctx, 1, certID)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	held, err := store.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, held, 1, "second assign must not add a duplicate")
}

func TestAssignUnknownCertification(t *testing.T) {
	store := NewMemoryStore()
	err := store.Assign(context.Background(), 1, 99)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRevoke(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	certID, err := store.Create(ctx, "Welding")
	require.NoError(t, err)
	require.NoError(t, store.Assign(ctx, 1, certID))

	require.NoError(t, store.Revoke(ctx, 1, certID))
	held, err := store.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, held)

	err = store.Revoke(ctx, 1, certID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListOrderedByName(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, name := range []string{"Welding", "First Aid", "Forklift"} {
		_, err := store.Create(ctx, name)
		require.NoError(t, err)
	}
	certs, err := store.List(ctx)
	require.NoError(t, err)
	var names []string
	for _, c := range certs {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"First Aid", "Forklift", "Welding"}, names)
}
