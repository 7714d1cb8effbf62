// Package geo resolves client IP addresses to country codes using a local
// MaxMind database. Lookups never fail the caller: any unresolved address
// maps to the "Unknown" sentinel.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/vadimbarashkov/shorturls/internal/models"
)

// MaxMindLocator resolves IPs against a GeoLite2/GeoIP2 country database
// file. Lookups are local reads, so no timeout handling is needed on the
// redirect path.
type MaxMindLocator struct {
	reader *geoip2.Reader
}

func NewMaxMindLocator(dbPath string) (*MaxMindLocator, error) {
	const op = "geo.NewMaxMindLocator"

	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open geoip database: %w", op, err)
	}

	return &MaxMindLocator{reader: reader}, nil
}

// Country returns the ISO country code for the given IP, or "Unknown" when
// the IP is unparseable or not present in the database.
func (l *MaxMindLocator) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return models.LocationUnknown
	}

	country, err := l.reader.Country(parsed)
	if err != nil || country.Country.IsoCode == "" {
		return models.LocationUnknown
	}

	return country.Country.IsoCode
}

func (l *MaxMindLocator) Close() error {
	return l.reader.Close()
}

// NopLocator is used when no geoip database is configured.
type NopLocator struct{}

func (NopLocator) Country(string) string {
	return models.LocationUnknown
}
