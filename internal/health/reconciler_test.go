package health

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freetoair/catalog/internal/catalog"
	"freetoair/catalog/internal/database"
	"freetoair/catalog/internal/metrics"
	"freetoair/catalog/internal/models"
)

// stubProber returns canned verdicts per URL; unknown URLs are unreachable.
type stubProber struct {
	verdicts map[string]bool
}

func (p *stubProber) Probe(_ context.Context, url string) bool {
	return p.verdicts[url]
}

// flakyStore wraps a real store but fails UpdateStatus for one channel id.
type flakyStore struct {
	catalog.ChannelStore
	failID string
}

func (s *flakyStore) UpdateStatus(ctx context.Context, id string, active bool) error {
	if id == s.failID {
		return errors.New("disk on fire")
	}
	return s.ChannelStore.UpdateStatus(ctx, id, active)
}

func newTestStore(t *testing.T) catalog.ChannelStore {
	t.Helper()

	dbCfg := database.NewConfig(filepath.Join(t.TempDir(), "catalog.db"))
	db, err := database.NewDB(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return catalog.NewStore(db)
}

func seedChannel(t *testing.T, store catalog.ChannelStore, id string, active bool) *models.Channel {
	t.Helper()

	ch := models.NewChannel()
	ch.ID = id
	ch.Name = "Channel " + id
	ch.Country = "UK"
	ch.Language = "English"
	ch.Category = "News"
	ch.StreamURL = "https://example.com/streams/" + id + ".m3u8"
	ch.IsActive = active

	created, err := store.InsertIfAbsent(context.Background(), ch)
	require.NoError(t, err)
	require.True(t, created)
	return ch
}

func statusByID(t *testing.T, store catalog.ChannelStore) map[string]bool {
	t.Helper()

	channels, err := store.ListAll(context.Background())
	require.NoError(t, err)

	got := make(map[string]bool, len(channels))
	for _, ch := range channels {
		got[ch.ID] = ch.IsActive
	}
	return got
}

func TestSweepMatchesProberVerdicts(t *testing.T) {
	store := newTestStore(t)

	verdicts := map[string]bool{}
	want := map[string]bool{
		"alpha":   true,
		"bravo":   false,
		"charlie": true,
		"delta":   false,
		"echo":    true,
	}
	for id, up := range want {
		ch := seedChannel(t, store, id, !up) // start from the opposite state
		verdicts[ch.StreamURL] = up
	}

	r := NewReconciler(store, &stubProber{verdicts: verdicts}, time.Minute, 3)
	require.NoError(t, r.Sweep(context.Background()))

	assert.Equal(t, want, statusByID(t, store))

	checked, active, skipped := r.Stats()
	assert.Equal(t, int64(5), checked)
	assert.Equal(t, int64(3), active)
	assert.Equal(t, int64(0), skipped)
}

func TestSweepStampsLastChecked(t *testing.T) {
	store := newTestStore(t)
	ch := seedChannel(t, store, "alpha", true)

	r := NewReconciler(store, &stubProber{verdicts: map[string]bool{ch.StreamURL: true}}, time.Minute, 1)
	require.NoError(t, r.Sweep(context.Background()))

	channels, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.NotNil(t, channels[0].LastCheckedAt)
}

func TestSweepContinuesPastStoreFailures(t *testing.T) {
	store := newTestStore(t)

	bad := seedChannel(t, store, "bad", true)
	good := seedChannel(t, store, "good", true)

	verdicts := map[string]bool{
		bad.StreamURL:  false,
		good.StreamURL: false,
	}
	flaky := &flakyStore{ChannelStore: store, failID: "bad"}

	r := NewReconciler(flaky, &stubProber{verdicts: verdicts}, time.Minute, 1)
	require.NoError(t, r.Sweep(context.Background()))

	got := statusByID(t, store)
	assert.True(t, got["bad"], "failed write leaves the old status in place")
	assert.False(t, got["good"], "sweep must continue past a failed write")

	checked, _, skipped := r.Stats()
	assert.Equal(t, int64(1), checked)
	assert.Equal(t, int64(1), skipped)
}

func TestSweepEmptyCatalog(t *testing.T) {
	store := newTestStore(t)

	r := NewReconciler(store, &stubProber{}, time.Minute, 2)
	require.NoError(t, r.Sweep(context.Background()))

	checked, active, skipped := r.Stats()
	assert.Zero(t, checked)
	assert.Zero(t, active)
	assert.Zero(t, skipped)
}

func TestSweepReportsCancellation(t *testing.T) {
	store := newTestStore(t)
	seedChannel(t, store, "alpha", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReconciler(store, &stubProber{}, time.Minute, 1)
	assert.Error(t, r.Sweep(ctx))
}

// cancelingProber cancels the sweep context on its first probe, simulating
// a shutdown arriving mid-sweep.
type cancelingProber struct {
	cancel context.CancelFunc
}

func (p *cancelingProber) Probe(_ context.Context, _ string) bool {
	p.cancel()
	return false
}

func TestInterruptedSweepIsNotCountedAsCompleted(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"alpha", "bravo", "charlie"} {
		seedChannel(t, store, id, true)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := testutil.ToFloat64(metrics.SweepsTotal)

	r := NewReconciler(store, &cancelingProber{cancel: cancel}, time.Minute, 1)
	require.Error(t, r.Sweep(ctx))

	assert.Equal(t, before, testutil.ToFloat64(metrics.SweepsTotal),
		"an interrupted sweep must not count as completed")

	// A full sweep afterwards counts exactly once.
	r2 := NewReconciler(store, &stubProber{}, time.Minute, 1)
	require.NoError(t, r2.Sweep(context.Background()))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SweepsTotal))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := newTestStore(t)

	r := NewReconciler(store, &stubProber{}, 50*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// Let at least one tick pass, then cancel.
	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop after context cancellation")
	}
}

func TestNewReconcilerDefaultsWorkerCount(t *testing.T) {
	r := NewReconciler(newTestStore(t), &stubProber{}, time.Minute, 0)
	assert.Greater(t, r.workers, 0)
}
