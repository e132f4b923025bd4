package store

import (
	"fmt"
	"strings"

	"pinbook/pkg/geo"
)

// Precision selects the map grouping granularity.
type Precision string

const (
	PrecisionCountry Precision = "country"
	PrecisionCity    Precision = "city"
)

// UnknownCity is the display bucket for located photos whose city the
// geocoder could not name.
const UnknownCity = "(Unknown)"

// unknownCountry matches the resolver's country-code fallback; rows whose
// country was never resolved (NULL) collapse into the same bucket so
// cluster counts and drill-down counts always agree.
const unknownCountry = "??"

// maxClusters bounds a single clustering response. 500 bubbles is already
// far beyond what any map viewport can usefully render.
const maxClusters = 500

// ClusterBubble is an ephemeral map pin aggregate, never persisted.
type ClusterBubble struct {
	Key          string  `json:"key"`
	DisplayTitle string  `json:"display_title"`
	Count        int     `json:"count"`
	CentroidLat  float64 `json:"centroid_lat"`
	CentroidLon  float64 `json:"centroid_lon"`
}

// ClusterKey is the structured identity of one cluster. Its String form
// ("country:FR" / "city:Denver|US") is the wire identity handed to the
// UI; Parse anchors on the prefix and the last '|' so a city name
// containing the delimiter still round-trips.
type ClusterKey struct {
	Precision   Precision
	CountryCode string
	City        string // set only for city precision
}

func (k ClusterKey) String() string {
	if k.Precision == PrecisionCountry {
		return "country:" + k.CountryCode
	}
	return "city:" + k.City + "|" + k.CountryCode
}

func ParseClusterKey(s string) (ClusterKey, error) {
	if code, ok := strings.CutPrefix(s, "country:"); ok {
		if code == "" {
			return ClusterKey{}, fmt.Errorf("empty country code in cluster key %q", s)
		}
		return ClusterKey{Precision: PrecisionCountry, CountryCode: code}, nil
	}
	if rest, ok := strings.CutPrefix(s, "city:"); ok {
		idx := strings.LastIndex(rest, "|")
		if idx < 0 {
			return ClusterKey{}, fmt.Errorf("missing country separator in cluster key %q", s)
		}
		city, code := rest[:idx], rest[idx+1:]
		if city == "" || code == "" {
			return ClusterKey{}, fmt.Errorf("incomplete city cluster key %q", s)
		}
		return ClusterKey{Precision: PrecisionCity, City: city, CountryCode: code}, nil
	}
	return ClusterKey{}, fmt.Errorf("unrecognized cluster key %q", s)
}

type clusterRow struct {
	Code  string
	Title string
	City  string
	Cnt   int
	CLat  float64
	CLon  float64
}

// Clusters groups located photos into map pins.
//
// Country precision deliberately ignores the bbox and scans the whole
// table: a partially-zoomed viewport would otherwise undercount a
// country's total relative to what its drill-down timeline shows, and the
// two numbers must always agree.
func (s *Store) Clusters(bbox geo.BBox, precision Precision) ([]ClusterBubble, error) {
	if precision == PrecisionCountry {
		return s.countryClusters()
	}
	return s.cityClusters(bbox)
}

func (s *Store) countryClusters() ([]ClusterBubble, error) {
	var rows []clusterRow
	err := s.db.Raw(`
		SELECT IFNULL(country_code, ?) AS code,
		       MAX(IFNULL(country_name, IFNULL(country_code, ?))) AS title,
		       COUNT(*) AS cnt,
		       AVG(latitude) AS c_lat,
		       AVG(longitude) AS c_lon
		FROM photo_records
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		GROUP BY code
		ORDER BY cnt DESC
		LIMIT ?`,
		unknownCountry, unknownCountry, maxClusters,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	bubbles := make([]ClusterBubble, 0, len(rows))
	for _, r := range rows {
		key := ClusterKey{Precision: PrecisionCountry, CountryCode: r.Code}
		bubbles = append(bubbles, ClusterBubble{
			Key:          key.String(),
			DisplayTitle: r.Title,
			Count:        r.Cnt,
			CentroidLat:  r.CLat,
			CentroidLon:  r.CLon,
		})
	}
	return bubbles, nil
}

func (s *Store) cityClusters(bbox geo.BBox) ([]ClusterBubble, error) {
	var rows []clusterRow
	err := s.db.Raw(`
		SELECT IFNULL(NULLIF(city, ''), ?) AS city,
		       IFNULL(country_code, ?) AS code,
		       COUNT(*) AS cnt,
		       AVG(latitude) AS c_lat,
		       AVG(longitude) AS c_lon
		FROM photo_records
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?
		GROUP BY city, code
		ORDER BY cnt DESC
		LIMIT ?`,
		UnknownCity, unknownCountry,
		bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon, maxClusters,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	bubbles := make([]ClusterBubble, 0, len(rows))
	for _, r := range rows {
		key := ClusterKey{Precision: PrecisionCity, City: r.City, CountryCode: r.Code}
		bubbles = append(bubbles, ClusterBubble{
			Key:          key.String(),
			DisplayTitle: r.City,
			Count:        r.Cnt,
			CentroidLat:  r.CLat,
			CentroidLon:  r.CLon,
		})
	}
	return bubbles, nil
}

// PhotoListItem is one drill-down row: just enough for a timeline list
// without shipping the whole record.
type PhotoListItem struct {
	ID         string `json:"id"`
	TakenAt    *int64 `json:"taken_at,omitempty"`
	IsFavorite bool   `json:"is_favorite"`
	HasComment bool   `json:"has_comment"`
}

// DrillDown returns every photo belonging to a cluster, newest first.
func (s *Store) DrillDown(key ClusterKey) ([]PhotoListItem, error) {
	return s.drillDown(key, false)
}

// DrillDownFavorites is DrillDown restricted to favorited photos.
func (s *Store) DrillDownFavorites(key ClusterKey) ([]PhotoListItem, error) {
	return s.drillDown(key, true)
}

func (s *Store) drillDown(key ClusterKey, favoritesOnly bool) ([]PhotoListItem, error) {
	where := "latitude IS NOT NULL AND longitude IS NOT NULL AND IFNULL(country_code, ?) = ?"
	args := []interface{}{unknownCountry, key.CountryCode}

	if key.Precision == PrecisionCity {
		where += " AND IFNULL(NULLIF(city, ''), ?) = ?"
		args = append(args, UnknownCity, key.City)
	}
	if favoritesOnly {
		where += " AND is_favorite"
	}

	var items []PhotoListItem
	err := s.db.Raw(fmt.Sprintf(`
		SELECT id, taken_at, is_favorite,
		       comment IS NOT NULL AS has_comment
		FROM photo_records
		WHERE %s
		ORDER BY taken_at DESC`, where),
		args...,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
