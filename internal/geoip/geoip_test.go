package geoip

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFallback(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geo_fallback.json")
	data := `[
		{"net": "192.0.2.0/24", "country": "ca", "region": "nl"},
		{"net": "198.51.100.0/24", "country": "US", "region": "CA"},
		{"net": "203.0.113.0/24", "country": "FR"},
		{"net": "not-a-cidr", "country": "XX"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestLocationFromFallback(t *testing.T) {
	g, err := Init(writeFallback(t))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	tests := []struct {
		ip   string
		want string
	}{
		{"192.0.2.5", "CA-NL"},
		{"198.51.100.7", "US-CA"},
		{"203.0.113.9", "FR"},
		{"10.0.0.1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Location(net.ParseIP(tt.ip)))
		})
	}
}

func TestCountryAndRegion(t *testing.T) {
	g, err := Init(writeFallback(t))
	require.NoError(t, err)

	ip := net.ParseIP("192.0.2.5")
	assert.Equal(t, "CA", g.Country(ip))
	assert.Equal(t, "NL", g.Region(ip))
}

func TestNilGeoIP(t *testing.T) {
	var g *GeoIP
	assert.Equal(t, "", g.Location(net.ParseIP("192.0.2.5")))
	assert.NoError(t, g.Close())
}

func TestInitMissingFile(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}
