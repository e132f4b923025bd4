// Package geocode turns raw GPS coordinates into place names.
//
// The Resolver in this package is the only component allowed to talk to
// the reverse-geocoding provider. Everything about being a polite client
// lives here: a process-lifetime cache keyed by rounded coordinates,
// single-flight collapsing of concurrent lookups, and a sliding-window
// rate budget that stays below the provider's hard ceiling.
package geocode

import (
	"context"
	"fmt"
	"time"
)

// Place is the resolved attribution for a coordinate. City may be empty
// when the provider only knows the broader region.
type Place struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	City        string `json:"city,omitempty"`
}

// Placemark is the raw answer from a reverse-geocoding provider, before
// the Resolver applies its fallback rules.
type Placemark struct {
	CountryCode string
	CountryName string
	Locality    string
	SubAdmin    string
}

// Geocoder is the external reverse-geocoding collaborator.
// Implementations may return *ThrottleError when the provider pushes back.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*Placemark, error)
}

// ThrottleError signals provider-side throttling. RetryAfter is the
// provider's "seconds until reset" hint, zero when the provider gave none.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("geocode throttled, retry after %s", e.RetryAfter)
	}
	return "geocode throttled"
}

// CacheKey buckets a coordinate onto a 2-decimal-degree grid (~1.1km at
// the equator). Nearby photos intentionally share one cache entry;
// country/city attribution is stable at this cell size.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// placeFromPlacemark applies the fallback chain: country code defaults to
// "??", country name falls back to the code, city falls back to the
// broader administrative area.
func placeFromPlacemark(pm *Placemark) *Place {
	code := pm.CountryCode
	if code == "" {
		code = "??"
	}
	name := pm.CountryName
	if name == "" {
		name = code
	}
	city := pm.Locality
	if city == "" {
		city = pm.SubAdmin
	}
	return &Place{CountryCode: code, CountryName: name, City: city}
}
