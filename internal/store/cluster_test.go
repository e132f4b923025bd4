package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinbook/pkg/geo"
)

func TestClusterKeyRoundTrip(t *testing.T) {
	cases := []ClusterKey{
		{Precision: PrecisionCountry, CountryCode: "FR"},
		{Precision: PrecisionCountry, CountryCode: "??"},
		{Precision: PrecisionCity, City: "Denver", CountryCode: "US"},
		{Precision: PrecisionCity, City: UnknownCity, CountryCode: "DE"},
		// A city name containing the delimiter must still parse: the
		// country code is anchored on the last separator.
		{Precision: PrecisionCity, City: "We|ird Town", CountryCode: "GB"},
	}
	for _, key := range cases {
		parsed, err := ParseClusterKey(key.String())
		require.NoError(t, err, "key %q", key.String())
		assert.Equal(t, key, parsed)
	}
}

func TestParseClusterKeyRejectsGarbage(t *testing.T) {
	for _, s := range []string{
		"", "FR", "country:", "city:", "city:Denver", "city:|US", "city:Denver|", "region:FR",
	} {
		_, err := ParseClusterKey(s)
		assert.Error(t, err, "input %q", s)
	}
}

func seedClusterFixture(t *testing.T, s *Store) {
	t.Helper()
	recs := []*PhotoRecord{
		record("fr1", "FR", "France", "Paris", 48.85, 2.35, 1000, 100),
		record("fr2", "FR", "France", "Paris", 48.86, 2.36, 1001, 101),
		record("fr3", "FR", "France", "Lyon", 45.76, 4.84, 1002, 102),
		record("de1", "DE", "Germany", "Berlin", 52.52, 13.40, 1003, 103),
		record("de2", "DE", "Germany", "", 51.05, 13.74, 1004, 104),
		// Located but never geocoded: collapses into the unknown bucket.
		record("xx1", "", "", "", 0.5, 0.5, 1005, 105),
	}
	// One record without coordinates never appears on the map.
	recs = append(recs, &PhotoRecord{ID: "nogps", TakenAt: i64p(1006), ImportedAt: 106})

	for _, r := range recs {
		require.NoError(t, s.Upsert(r))
	}
}

func TestCountryClusters(t *testing.T) {
	s := openTestStore(t)
	seedClusterFixture(t, s)

	bubbles, err := s.Clusters(geo.World(), PrecisionCountry)
	require.NoError(t, err)
	require.Len(t, bubbles, 3)

	byKey := map[string]ClusterBubble{}
	total := 0
	for _, b := range bubbles {
		byKey[b.Key] = b
		total += b.Count
	}
	assert.Equal(t, 6, total, "every located photo lands in exactly one bubble")

	fr := byKey["country:FR"]
	assert.Equal(t, 3, fr.Count)
	assert.Equal(t, "France", fr.DisplayTitle)
	assert.InDelta(t, (48.85+48.86+45.76)/3, fr.CentroidLat, 1e-9)

	assert.Equal(t, 2, byKey["country:DE"].Count)
	assert.Equal(t, 1, byKey["country:??"].Count)

	// Descending by count.
	assert.Equal(t, "country:FR", bubbles[0].Key)
}

func TestCountryClustersIgnoreBBox(t *testing.T) {
	s := openTestStore(t)
	seedClusterFixture(t, s)

	// A viewport covering nothing still reports whole-collection counts,
	// so bubble counts always match the drill-down timeline.
	empty := geo.BBox{MinLat: -10, MinLon: -10, MaxLat: -9, MaxLon: -9}
	bubbles, err := s.Clusters(empty, PrecisionCountry)
	require.NoError(t, err)
	assert.Len(t, bubbles, 3)
}

func TestCityClustersRespectBBox(t *testing.T) {
	s := openTestStore(t)
	seedClusterFixture(t, s)

	// Viewport around France only.
	frBox := geo.BBox{MinLat: 42, MinLon: -5, MaxLat: 51, MaxLon: 8}
	bubbles, err := s.Clusters(frBox, PrecisionCity)
	require.NoError(t, err)

	byKey := map[string]int{}
	for _, b := range bubbles {
		byKey[b.Key] = b.Count
	}
	assert.Equal(t, 2, byKey["city:Paris|FR"])
	assert.Equal(t, 1, byKey["city:Lyon|FR"])
	assert.NotContains(t, byKey, "city:Berlin|DE")
}

func TestCityClustersUnknownBuckets(t *testing.T) {
	s := openTestStore(t)
	seedClusterFixture(t, s)

	bubbles, err := s.Clusters(geo.World(), PrecisionCity)
	require.NoError(t, err)

	byKey := map[string]ClusterBubble{}
	for _, b := range bubbles {
		byKey[b.Key] = b
	}

	// Empty city collapses into the unknown-city bucket of its country.
	de, ok := byKey["city:(Unknown)|DE"]
	require.True(t, ok)
	assert.Equal(t, 1, de.Count)
	assert.Equal(t, UnknownCity, de.DisplayTitle)

	// Never geocoded at all: unknown city in the unknown country.
	assert.Equal(t, 1, byKey["city:(Unknown)|??"].Count)
}

func TestDrillDownMatchesClusterCounts(t *testing.T) {
	s := openTestStore(t)
	seedClusterFixture(t, s)

	for _, precision := range []Precision{PrecisionCountry, PrecisionCity} {
		bubbles, err := s.Clusters(geo.World(), precision)
		require.NoError(t, err)
		for _, b := range bubbles {
			key, err := ParseClusterKey(b.Key)
			require.NoError(t, err)
			items, err := s.DrillDown(key)
			require.NoError(t, err)
			assert.Len(t, items, b.Count, "bubble %q", b.Key)
		}
	}
}

func TestDrillDownOrderAndFlags(t *testing.T) {
	s := openTestStore(t)
	seedClusterFixture(t, s)
	require.NoError(t, s.SetFavorite("fr1", true))
	require.NoError(t, s.SetComment("fr3", strp("view from Fourvière")))

	items, err := s.DrillDown(ClusterKey{Precision: PrecisionCountry, CountryCode: "FR"})
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Newest first.
	assert.Equal(t, []string{"fr3", "fr2", "fr1"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.True(t, items[0].HasComment)
	assert.False(t, items[0].IsFavorite)
	assert.True(t, items[2].IsFavorite)
	assert.False(t, items[2].HasComment)
}

func TestDrillDownFavorites(t *testing.T) {
	s := openTestStore(t)
	seedClusterFixture(t, s)
	require.NoError(t, s.SetFavorite("fr1", true))
	require.NoError(t, s.SetFavorite("fr3", true))

	items, err := s.DrillDownFavorites(ClusterKey{Precision: PrecisionCountry, CountryCode: "FR"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.True(t, it.IsFavorite)
	}

	items, err = s.DrillDownFavorites(ClusterKey{Precision: PrecisionCity, City: "Paris", CountryCode: "FR"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fr1", items[0].ID)
}
