package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinbook/internal/geocode"
	"pinbook/internal/store"
	"pinbook/pkg/geo"
)

// fakeSource serves a fixed asset list and applies the since filter the
// way a real source would: created or modified strictly after the mark.
type fakeSource struct {
	assets []Asset
	err    error
}

func (f *fakeSource) Enumerate(ctx context.Context, since *int64) ([]Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	if since == nil {
		return f.assets, nil
	}
	var out []Asset
	for _, a := range f.assets {
		if (a.TakenAt != nil && *a.TakenAt > *since) ||
			(a.ModifiedAt != nil && *a.ModifiedAt > *since) {
			out = append(out, a)
		}
	}
	return out, nil
}

// stubGeocoder resolves everything to one country; block, when set, holds
// every call until the channel is closed.
type stubGeocoder struct {
	mu    sync.Mutex
	calls int
	fail  bool
	block chan struct{}
}

func (g *stubGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (*geocode.Placemark, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.fail {
		return nil, errors.New("provider unavailable")
	}
	return &geocode.Placemark{CountryCode: "FR", CountryName: "France", Locality: "Paris"}, nil
}

func i64p(v int64) *int64 { return &v }

func asset(id string, takenAt int64, lat, lon float64) Asset {
	return Asset{
		ID:         id,
		TakenAt:    i64p(takenAt),
		ModifiedAt: i64p(takenAt),
		Coord:      &geo.Point{Lat: lat, Lon: lon},
	}
}

func assetNoGPS(id string, takenAt int64) Asset {
	return Asset{ID: id, TakenAt: i64p(takenAt), ModifiedAt: i64p(takenAt)}
}

func newTestPipeline(t *testing.T, src AssetSource, g geocode.Geocoder) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(src, geocode.NewResolver(g, 0), st), st
}

func TestFullReindexThenQuietIncremental(t *testing.T) {
	src := &fakeSource{assets: []Asset{
		asset("a", 1000, 48.85, 2.35),
		assetNoGPS("b", 1001),
		asset("c", 1002, 48.86, 2.36),
		assetNoGPS("d", 1003),
		asset("e", 1004, 45.76, 4.84),
	}}
	p, st := newTestPipeline(t, src, &stubGeocoder{})

	sum, err := p.FullReindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunSummary{AssetsIndexed: 5, WithLocation: 3}, sum)

	items, err := st.DrillDown(store.ClusterKey{Precision: store.PrecisionCountry, CountryCode: "FR"})
	require.NoError(t, err)
	assert.Len(t, items, 3, "only geotagged assets produce records")

	wm, ok, err := st.LatestWatermark()
	require.NoError(t, err)
	require.True(t, ok)

	// Nothing changed since the watermark, so the next run is a no-op.
	sum, err = p.IncrementalIndex(context.Background(), wm)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{}, sum)
}

func TestIncrementalPicksUpNewAndModified(t *testing.T) {
	src := &fakeSource{assets: []Asset{asset("old", 1000, 48.85, 2.35)}}
	p, st := newTestPipeline(t, src, &stubGeocoder{})

	_, err := p.FullReindex(context.Background())
	require.NoError(t, err)

	// One brand-new asset and one edit of an existing file.
	src.assets = append(src.assets, asset("new", 5000, 48.90, 2.40))
	src.assets[0].ModifiedAt = i64p(6000)

	sum, err := p.IncrementalIndex(context.Background(), 2000)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{AssetsIndexed: 2, WithLocation: 2}, sum)

	items, err := st.DrillDown(store.ClusterKey{Precision: store.PrecisionCountry, CountryCode: "FR"})
	require.NoError(t, err)
	assert.Len(t, items, 2, "re-upserting the modified asset must not duplicate it")
}

func TestFullReindexDropsVanishedAssets(t *testing.T) {
	src := &fakeSource{assets: []Asset{
		asset("keep", 1000, 48.85, 2.35),
		asset("gone", 1001, 48.86, 2.36),
	}}
	p, st := newTestPipeline(t, src, &stubGeocoder{})

	_, err := p.FullReindex(context.Background())
	require.NoError(t, err)

	src.assets = src.assets[:1]
	_, err = p.FullReindex(context.Background())
	require.NoError(t, err)

	items, err := st.DrillDown(store.ClusterKey{Precision: store.PrecisionCountry, CountryCode: "FR"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "keep", items[0].ID)
}

func TestOnlyOneRunAtATime(t *testing.T) {
	g := &stubGeocoder{block: make(chan struct{})}
	src := &fakeSource{assets: []Asset{asset("a", 1000, 48.85, 2.35)}}
	p, _ := newTestPipeline(t, src, g)

	started := make(chan RunSummary, 1)
	go func() {
		sum, err := p.FullReindex(context.Background())
		require.NoError(t, err)
		started <- sum
	}()

	// Wait until the first run is parked inside the geocoder.
	require.Eventually(t, func() bool { return p.running.Load() },
		time.Second, time.Millisecond)

	_, err := p.FullReindex(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = p.IncrementalIndex(context.Background(), 0)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(g.block)
	sum := <-started
	assert.Equal(t, RunSummary{AssetsIndexed: 1, WithLocation: 1}, sum)

	// The guard releases once the run finishes.
	_, err = p.IncrementalIndex(context.Background(), time.Now().Unix()+100)
	assert.NoError(t, err)
}

func TestGeocodeFailureStillIndexesCoordinates(t *testing.T) {
	src := &fakeSource{assets: []Asset{asset("a", 1000, 48.85, 2.35)}}
	p, st := newTestPipeline(t, src, &stubGeocoder{fail: true})

	sum, err := p.FullReindex(context.Background())
	require.NoError(t, err, "an unresolvable place never fails the run")
	assert.Equal(t, RunSummary{AssetsIndexed: 1, WithLocation: 1}, sum)

	// The record exists with raw coordinates and lands in the
	// unknown-country bucket.
	items, err := st.DrillDown(store.ClusterKey{Precision: store.PrecisionCountry, CountryCode: "??"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
}

func TestCancelledRunStopsBetweenAssets(t *testing.T) {
	src := &fakeSource{assets: []Asset{
		asset("a", 1000, 48.85, 2.35),
		asset("b", 1001, 48.86, 2.36),
	}}
	p, st := newTestPipeline(t, src, &stubGeocoder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := p.IncrementalIndex(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, RunSummary{}, sum)

	_, ok, err := st.LatestWatermark()
	require.NoError(t, err)
	assert.False(t, ok, "nothing was committed")
}

func TestEnumerateFailureAbortsRun(t *testing.T) {
	src := &fakeSource{err: errors.New("disk on fire")}
	p, _ := newTestPipeline(t, src, &stubGeocoder{})

	_, err := p.FullReindex(context.Background())
	assert.ErrorContains(t, err, "enumerate assets")
}

func TestWatermarkAdvancesAcrossRuns(t *testing.T) {
	src := &fakeSource{assets: []Asset{asset("a", 1000, 48.85, 2.35)}}
	p, st := newTestPipeline(t, src, &stubGeocoder{})

	_, err := p.FullReindex(context.Background())
	require.NoError(t, err)
	first, ok, err := st.LatestWatermark()
	require.NoError(t, err)
	require.True(t, ok)

	src.assets[0].ModifiedAt = i64p(time.Now().Unix() + 10)
	_, err = p.IncrementalIndex(context.Background(), first)
	require.NoError(t, err)

	second, ok, err := st.LatestWatermark()
	require.NoError(t, err)
	require.True(t, ok)
	assert.GreaterOrEqual(t, second, first)
}
