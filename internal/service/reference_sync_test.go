package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

func TestReferenceSync_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	mustCreateBond(t, st, domain.Bond{ID: "old", ISIN: "US1", Issuer: "Kept"})
	src := &fakeUpstream{list: []domain.Bond{
		{ID: "US1", ISIN: "US1", Issuer: "Overwrite"},
		{ID: "US2", ISIN: "US2", Issuer: "New"},
		{Issuer: "No id"},
	}}

	res, err := NewReferenceSync(st.Bonds, src, 100, discardLogger()).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Synced: 1, Skipped: 2, Total: 3}, res)
	assert.False(t, src.bulkUsed)

	kept, err := st.Bonds.GetByID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "Kept", kept.Issuer)

	n, err := st.Bonds.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReferenceSync_FallsBackToBulk(t *testing.T) {
	st := newTestStore()
	src := &fakeUpstream{
		listErr: errUpstreamDown,
		bulk:    []domain.Bond{{ID: "XS1", ISIN: "XS1"}},
	}

	res, err := NewReferenceSync(st.Bonds, src, 0, discardLogger()).Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, src.bulkUsed)
	assert.Equal(t, 1, res.Synced)
}

func TestReferenceSync_BothSourcesFail(t *testing.T) {
	src := &fakeUpstream{listErr: errUpstreamDown, bulkErr: errUpstreamDown}

	_, err := NewReferenceSync(newTestStore().Bonds, src, 0, discardLogger()).Sync(context.Background())
	assert.ErrorIs(t, err, errUpstreamDown)
}
