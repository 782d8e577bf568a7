package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGeolocation is returned when a code is not a well formed ISO 3166 code.
var ErrInvalidGeolocation = errors.New("invalid geolocation")

// Geolocation is an ISO 3166-1 country code with an optional ISO 3166-2
// subdivision, written "CC" or "CC-RR".
type Geolocation struct {
	Country string
	Region  string
}

// ParseGeolocation parses a single "CC" or "CC-RR" code. Surrounding space is
// ignored and both parts are upper-cased.
func ParseGeolocation(code string) (Geolocation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	country, region, found := strings.Cut(code, "-")
	if found && region == "" {
		return Geolocation{}, fmt.Errorf("%w: %s is not a supported ISO 3166-2 code", ErrInvalidGeolocation, code)
	}
	g := Geolocation{Country: country, Region: region}
	if err := g.Validate(); err != nil {
		return Geolocation{}, err
	}
	return g, nil
}

// ParseGeolocations parses a comma separated list such as "US-CA, CA-ON".
// Blank entries are skipped; an empty input yields no geolocations.
func ParseGeolocations(list string) ([]Geolocation, error) {
	var out []Geolocation
	var errs []error
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		g, err := ParseGeolocation(part)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, g)
	}
	return out, errors.Join(errs...)
}

// Validate checks the shape of the code: a two letter country and, when
// present, a region of one to three letters or digits.
func (g Geolocation) Validate() error {
	if len(g.Country) != 2 || !isUpperAlpha(g.Country) {
		return fmt.Errorf("%w: %s is not a supported ISO 3166-2 code", ErrInvalidGeolocation, g.ISO3166())
	}
	if g.Region == "" {
		return nil
	}
	if len(g.Region) > 3 || !isUpperAlnum(g.Region) {
		return fmt.Errorf("%w: %s is not a supported ISO 3166-2 code", ErrInvalidGeolocation, g.ISO3166())
	}
	return nil
}

// HasRegion reports whether g names a subdivision rather than a whole country.
func (g Geolocation) HasRegion() bool {
	return g.Region != ""
}

// ISO3166 formats g as "CC" or "CC-RR".
func (g Geolocation) ISO3166() string {
	if g.Region == "" {
		return g.Country
	}
	return g.Country + "-" + g.Region
}

func (g Geolocation) String() string {
	return g.ISO3166()
}

// MarshalText encodes g in its ISO 3166 form so JSON carries plain strings.
func (g Geolocation) MarshalText() ([]byte, error) {
	return []byte(g.ISO3166()), nil
}

// UnmarshalText parses an ISO 3166 code.
func (g *Geolocation) UnmarshalText(text []byte) error {
	parsed, err := ParseGeolocation(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func isUpperAlnum(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
