// Package source provides the filesystem asset source: a directory of
// photos enumerated through their EXIF metadata. Only metadata is read;
// pixels are never decoded.
package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"pinbook/internal/indexer"
	"pinbook/pkg/geo"
	"pinbook/pkg/logger"
)

// exifExtensions are the formats goexif can read metadata from.
var exifExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// ExifDirSource walks a photo directory tree. The path relative to Root
// is the stable asset id, EXIF DateTimeOriginal is the creation time, and
// the file mtime is the modification time.
type ExifDirSource struct {
	Root string
}

func NewExifDirSource(root string) *ExifDirSource {
	return &ExifDirSource{Root: root}
}

// Enumerate returns assets in ascending creation order. Files whose EXIF
// block is missing or unreadable are still enumerated (without timestamp
// or coordinate); completely unreadable files are skipped with a warning
// rather than failing the whole run.
func (s *ExifDirSource) Enumerate(ctx context.Context, since *int64) ([]indexer.Asset, error) {
	var assets []indexer.Asset

	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !exifExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			rel = p
		}

		asset, err := s.readAsset(p, rel)
		if err != nil {
			logger.LogWarn("Skipping %s: %v", rel, err)
			return nil
		}

		if since != nil && !changedAfter(asset, *since) {
			return nil
		}
		assets = append(assets, asset)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Ascending creation order keeps runs deterministic and the rate
	// limiter's load pattern stable; untimestamped assets sort last.
	sort.SliceStable(assets, func(i, j int) bool {
		ti, tj := assets[i].TakenAt, assets[j].TakenAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return *ti < *tj
		}
	})
	return assets, nil
}

func (s *ExifDirSource) readAsset(path, id string) (indexer.Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return indexer.Asset{}, err
	}
	modified := info.ModTime().Unix()

	asset := indexer.Asset{ID: id, ModifiedAt: &modified}

	f, err := os.Open(path)
	if err != nil {
		return indexer.Asset{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// No EXIF block at all. The photo still counts as an asset; it
		// just has nothing to geotag.
		return asset, nil
	}

	if tm, err := x.DateTime(); err == nil {
		taken := tm.Unix()
		asset.TakenAt = &taken
	}
	if lat, lon, err := x.LatLong(); err == nil {
		asset.Coord = &geo.Point{Lat: lat, Lon: lon}
	}
	return asset, nil
}

// changedAfter applies the incremental filter: creation OR modification
// strictly after the watermark.
func changedAfter(a indexer.Asset, since int64) bool {
	if a.TakenAt != nil && *a.TakenAt > since {
		return true
	}
	if a.ModifiedAt != nil && *a.ModifiedAt > since {
		return true
	}
	return false
}
