// Package indexer orchestrates indexing runs: it enumerates assets from
// the source, resolves places for the geotagged ones, and upserts records
// into the store, strictly one asset at a time.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"pinbook/internal/geocode"
	"pinbook/internal/store"
	"pinbook/pkg/geo"
	"pinbook/pkg/logger"
)

// ErrRunInProgress guards against overlapping runs; the resolver's
// bookkeeping and the watermark both assume one run at a time.
var ErrRunInProgress = errors.New("an indexing run is already in progress")

// Asset is one photo from the source collaborator. TakenAt/ModifiedAt are
// epoch seconds; Coord is nil for photos without GPS data.
type Asset struct {
	ID         string
	TakenAt    *int64
	ModifiedAt *int64
	Coord      *geo.Point
}

// AssetSource enumerates photos in ascending creation order. When since
// is non-nil, only assets created OR modified strictly after it are
// returned. Enumeration is one-shot per call and re-enumerable.
type AssetSource interface {
	Enumerate(ctx context.Context, since *int64) ([]Asset, error)
}

// RunSummary is what one indexing run reports back.
type RunSummary struct {
	AssetsIndexed int `json:"assets_indexed"`
	WithLocation  int `json:"with_location"`
}

func (r RunSummary) String() string {
	return fmt.Sprintf("%d assets indexed, %d with location", r.AssetsIndexed, r.WithLocation)
}

// Pipeline ties the asset source, the geocode resolver and the store
// together.
type Pipeline struct {
	source   AssetSource
	resolver *geocode.Resolver
	store    *store.Store

	running atomic.Bool

	// injected in tests to pin watermarks; defaults to the wall clock
	now func() time.Time
}

func New(source AssetSource, resolver *geocode.Resolver, st *store.Store) *Pipeline {
	return &Pipeline{
		source:   source,
		resolver: resolver,
		store:    st,
		now:      time.Now,
	}
}

// FullReindex clears all persisted records and indexes every asset from
// scratch. User annotations on surviving ids are lost only here, by
// design of a full reset.
func (p *Pipeline) FullReindex(ctx context.Context) (RunSummary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	if err := p.store.ResetAll(); err != nil {
		return RunSummary{}, fmt.Errorf("reset before full reindex: %w", err)
	}
	return p.run(ctx, nil)
}

// IncrementalIndex indexes only assets created or modified strictly after
// since. Upserts are idempotent and the watermark is monotonic, so a
// cancelled run leaves the store valid and resumable.
func (p *Pipeline) IncrementalIndex(ctx context.Context, since int64) (RunSummary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	return p.run(ctx, &since)
}

// run applies the per-asset algorithm sequentially. Geocode calls are the
// bottleneck resource; processing one asset at a time in stable order
// keeps the resolver's single-flight and rate bookkeeping simple and
// avoids blowing the rate budget on a large library.
func (p *Pipeline) run(ctx context.Context, since *int64) (RunSummary, error) {
	assets, err := p.source.Enumerate(ctx, since)
	if err != nil {
		return RunSummary{}, fmt.Errorf("enumerate assets: %w", err)
	}

	var summary RunSummary
	for _, asset := range assets {
		// Cancellation only between assets: the current record is
		// always fully committed before we stop.
		if err := ctx.Err(); err != nil {
			logger.LogWarn("Indexing cancelled after %s", summary)
			return summary, err
		}

		summary.AssetsIndexed++

		if asset.Coord == nil {
			// No coordinate: nothing to resolve, and a prior record
			// for this id (if any) stays as-is.
			continue
		}
		summary.WithLocation++

		rec := &store.PhotoRecord{
			ID:         asset.ID,
			TakenAt:    asset.TakenAt,
			Latitude:   &asset.Coord.Lat,
			Longitude:  &asset.Coord.Lon,
			ImportedAt: p.now().Unix(),
		}

		// A nil place is fine: the photo is still indexed with its raw
		// coordinates and shows up as "place unknown".
		if place := p.resolver.Resolve(ctx, asset.Coord.Lat, asset.Coord.Lon); place != nil {
			rec.CountryCode = &place.CountryCode
			rec.CountryName = &place.CountryName
			if place.City != "" {
				city := place.City
				rec.City = &city
			}
		}

		if err := p.store.Upsert(rec); err != nil {
			// Store-level failures are the only thing that aborts a run.
			return summary, fmt.Errorf("upsert %s: %w", asset.ID, err)
		}
	}

	logger.LogInfo("Indexing run complete: %s", summary)
	return summary, nil
}
