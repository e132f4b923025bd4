package store

import (
	"fmt"
	"strings"
	"time"
)

// HighlightKind tags one diary highlight.
type HighlightKind string

const (
	HighlightMostPhotographed HighlightKind = "mostPhotographed"
	HighlightFirstStamp       HighlightKind = "firstStamp"
	HighlightLatestStamp      HighlightKind = "latestStamp"
)

// Highlight is one notable-country entry in the diary summary.
type Highlight struct {
	Kind        HighlightKind `json:"kind"`
	CountryCode string        `json:"country_code"`
	CountryName string        `json:"country_name"`
	Count       int           `json:"count,omitempty"`
	YearsLabel  string        `json:"years_label,omitempty"`
}

// DiarySummary is the ephemeral aggregate behind the travel-diary header.
type DiarySummary struct {
	DistinctCountryCount int         `json:"distinct_country_count"`
	DateRangeLabel       string      `json:"date_range_label"`
	Highlights           []Highlight `json:"highlights"`
}

// DiarySummary computes the travel facts from four independent aggregates
// over the whole table. Highlights come back in a fixed order:
// most-photographed, first-stamp, latest-stamp; entries whose aggregate
// has no data are simply absent.
func (s *Store) DiarySummary() (*DiarySummary, error) {
	out := &DiarySummary{Highlights: []Highlight{}}

	var countries int
	err := s.db.Model(&PhotoRecord{}).
		Select("COUNT(DISTINCT country_code)").
		Where("country_code IS NOT NULL").
		Scan(&countries).Error
	if err != nil {
		return nil, err
	}
	out.DistinctCountryCount = countries

	label, err := s.dateRangeLabel()
	if err != nil {
		return nil, err
	}
	out.DateRangeLabel = label

	if h, err := s.mostPhotographedHighlight(); err != nil {
		return nil, err
	} else if h != nil {
		out.Highlights = append(out.Highlights, *h)
	}

	if h, err := s.stampHighlight(HighlightFirstStamp); err != nil {
		return nil, err
	} else if h != nil {
		out.Highlights = append(out.Highlights, *h)
	}

	if h, err := s.stampHighlight(HighlightLatestStamp); err != nil {
		return nil, err
	} else if h != nil {
		out.Highlights = append(out.Highlights, *h)
	}

	return out, nil
}

// dateRangeLabel collapses to a single year when the whole collection
// fits in one, and falls back to "All time" when nothing has a timestamp.
func (s *Store) dateRangeLabel() (string, error) {
	var row struct {
		MinTs *int64
		MaxTs *int64
	}
	err := s.db.Model(&PhotoRecord{}).
		Select("MIN(taken_at) AS min_ts, MAX(taken_at) AS max_ts").
		Where("taken_at IS NOT NULL").
		Scan(&row).Error
	if err != nil {
		return "", err
	}
	if row.MinTs == nil || row.MaxTs == nil {
		return "All time", nil
	}

	minYear := time.Unix(*row.MinTs, 0).UTC().Year()
	maxYear := time.Unix(*row.MaxTs, 0).UTC().Year()
	if minYear == maxYear {
		return fmt.Sprintf("%d", minYear), nil
	}
	return fmt.Sprintf("%d–%d", minYear, maxYear), nil
}

func (s *Store) mostPhotographedHighlight() (*Highlight, error) {
	var row struct {
		Code  string
		Title string
		Cnt   int
	}
	res := s.db.Raw(`
		SELECT country_code AS code,
		       MAX(IFNULL(country_name, country_code)) AS title,
		       COUNT(*) AS cnt
		FROM photo_records
		WHERE country_code IS NOT NULL
		GROUP BY country_code
		ORDER BY cnt DESC
		LIMIT 1`).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	years, err := s.distinctYears(row.Code)
	if err != nil {
		return nil, err
	}

	return &Highlight{
		Kind:        HighlightMostPhotographed,
		CountryCode: row.Code,
		CountryName: row.Title,
		Count:       row.Cnt,
		YearsLabel:  representativeYears(years),
	}, nil
}

// stampHighlight names the country holding the single earliest or latest
// timestamped photo.
func (s *Store) stampHighlight(kind HighlightKind) (*Highlight, error) {
	order := "ASC"
	if kind == HighlightLatestStamp {
		order = "DESC"
	}

	var row struct {
		Code  string
		Title string
	}
	res := s.db.Raw(fmt.Sprintf(`
		SELECT country_code AS code,
		       IFNULL(country_name, country_code) AS title
		FROM photo_records
		WHERE taken_at IS NOT NULL AND country_code IS NOT NULL
		ORDER BY taken_at %s
		LIMIT 1`, order)).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	return &Highlight{
		Kind:        kind,
		CountryCode: row.Code,
		CountryName: row.Title,
	}, nil
}

func (s *Store) distinctYears(countryCode string) ([]int, error) {
	var years []int
	err := s.db.Raw(`
		SELECT DISTINCT CAST(strftime('%Y', taken_at, 'unixepoch') AS INTEGER) AS y
		FROM photo_records
		WHERE country_code = ? AND taken_at IS NOT NULL
		ORDER BY y`, countryCode).Scan(&years).Error
	if err != nil {
		return nil, err
	}
	return years, nil
}

// representativeYears picks up to three years to show next to the
// most-photographed country: all of them when three or fewer, otherwise
// the first, middle and last of its distinct photographed years.
func representativeYears(years []int) string {
	if len(years) == 0 {
		return ""
	}
	picked := years
	if len(years) > 3 {
		picked = []int{years[0], years[len(years)/2], years[len(years)-1]}
	}
	parts := make([]string, len(picked))
	for i, y := range picked {
		parts[i] = fmt.Sprintf("%d", y)
	}
	return strings.Join(parts, ", ")
}
