package geoip

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP resolves visitor locations using a MaxMind City/Country DB or a JSON
// fallback. The fallback file is a list of {"net": CIDR, "country": CC,
// "region": RR} entries and is meant for development and tests.
type GeoIP struct {
	db       *geoip2.Reader
	fallback []record
}

type record struct {
	net     *net.IPNet
	country string
	region  string
}

// Init opens the database located at path, trying the MaxMind format first
// and the JSON fallback second.
func Init(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err == nil {
		return &GeoIP{db: db}, nil
	}

	fallback, jerr := loadFallback(path)
	if jerr != nil {
		return nil, fmt.Errorf("open geoip db %s: %w", path, err)
	}
	return &GeoIP{fallback: fallback}, nil
}

func loadFallback(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []struct {
		Net     string `json:"net"`
		Country string `json:"country"`
		Region  string `json:"region"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	records := make([]record, 0, len(entries))
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			records = append(records, record{net: n, country: e.Country, region: e.Region})
		}
	}
	return records, nil
}

// lookup returns the upper-cased country and region for ip. Either may be empty.
func (g *GeoIP) lookup(ip net.IP) (country, region string) {
	if g == nil || ip == nil {
		return "", ""
	}
	if g.db != nil {
		// City databases carry subdivisions; Country databases only answer Country.
		if rec, err := g.db.City(ip); err == nil && rec.Country.IsoCode != "" {
			country = rec.Country.IsoCode
			if len(rec.Subdivisions) > 0 {
				region = rec.Subdivisions[0].IsoCode
			}
		} else if rec, err := g.db.Country(ip); err == nil {
			country = rec.Country.IsoCode
		}
	}
	if country == "" {
		for _, r := range g.fallback {
			if r.net.Contains(ip) {
				country, region = r.country, r.region
				break
			}
		}
	}
	return strings.ToUpper(country), strings.ToUpper(region)
}

// Country returns the ISO country code for the given IP, or "".
func (g *GeoIP) Country(ip net.IP) string {
	country, _ := g.lookup(ip)
	return country
}

// Region returns the subdivision code for the given IP, or "".
func (g *GeoIP) Region(ip net.IP) string {
	_, region := g.lookup(ip)
	return region
}

// Location returns the ISO 3166 location of ip: "CC-RR" when a subdivision is
// known, "CC" when only the country is, and "" otherwise.
func (g *GeoIP) Location(ip net.IP) string {
	country, region := g.lookup(ip)
	switch {
	case country == "":
		return ""
	case region == "":
		return country
	default:
		return country + "-" + region
	}
}

// Close releases resources associated with the database.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}
