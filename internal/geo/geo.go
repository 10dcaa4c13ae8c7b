package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/wroge/wgs84"
)

// All map coordinates are WGS84 (EPSG:4326). Metric work such as circle
// approximation is done in web mercator (EPSG:3857), which is what the host
// map renders in, so the resulting ring looks round on screen.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// LatLngFromString parses a "lat,lng" string into a coordinate.
func LatLngFromString(coords string) (core.LatLng, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return core.LatLng{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.LatLng{}, ErrInvalidCoordinates
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.LatLng{}, ErrInvalidCoordinates
	}
	p := core.LatLng{Lat: lat, Lng: lng}
	if !p.Valid() {
		return core.LatLng{}, ErrInvalidCoordinates
	}
	return p, nil
}

var (
	toMercator = wgs84.EPSG().Transform(4326, 3857)
	toLonLat   = wgs84.EPSG().Transform(3857, 4326)
)

// ToMercator projects a WGS84 coordinate to web mercator metres.
func ToMercator(p core.LatLng) (x, y float64) {
	x, y, _ = toMercator(p.Lng, p.Lat, 0)
	return x, y
}

// FromMercator converts web mercator metres back to WGS84.
func FromMercator(x, y float64) core.LatLng {
	lng, lat, _ := toLonLat(x, y, 0)
	return core.LatLng{Lat: lat, Lng: lng}
}

// mercatorScale is the web mercator stretch factor at a latitude.
// A ground distance d spans d*mercatorScale projected metres.
func mercatorScale(lat float64) float64 {
	return 1 / math.Cos(lat*math.Pi/180)
}
