package geocode

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muesli/gominatim"
	"golang.org/x/time/rate"
)

// reverseZoom 10 asks Nominatim for city-level detail; street-level
// answers would only add noise to the attribution.
const reverseZoom = 10

// NominatimGeocoder is the production Geocoder, backed by a Nominatim
// instance. On top of the Resolver's per-minute budget it paces
// consecutive outbound calls with a courtesy interval, which is what the
// public instance's usage policy actually asks for.
type NominatimGeocoder struct {
	server  string
	limiter *rate.Limiter
	once    sync.Once
}

func NewNominatimGeocoder(server string, minInterval time.Duration) *NominatimGeocoder {
	if minInterval <= 0 {
		minInterval = 400 * time.Millisecond
	}
	return &NominatimGeocoder{
		server:  server,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (*Placemark, error) {
	g.once.Do(func() {
		gominatim.SetServer(g.server)
	})

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := gominatim.ReverseQuery{
		Lat:  strconv.FormatFloat(lat, 'f', 6, 64),
		Lon:  strconv.FormatFloat(lon, 'f', 6, 64),
		Zoom: reverseZoom,
	}

	res, err := q.Get()
	if err != nil {
		if isThrottled(err) {
			// Nominatim does not ship a machine-readable reset hint, so
			// the Resolver sees a hint-less throttle and gives up on
			// this coordinate rather than guessing a backoff.
			return nil, &ThrottleError{}
		}
		return nil, err
	}

	return &Placemark{
		CountryCode: strings.ToUpper(res.Address.CountryCode),
		CountryName: res.Address.Country,
		Locality:    res.Address.City,
		SubAdmin:    firstNonEmpty(res.Address.County, res.Address.State),
	}, nil
}

func isThrottled(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "Too Many Requests")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
