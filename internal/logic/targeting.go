package logic

import (
	"net"
	"net/http"
	"strings"

	"github.com/patrickwarner/billboardserve/internal/geoip"
)

// RequestTargeting holds the targeting inputs derived from the HTTP request
// itself rather than from explicit parameters.
type RequestTargeting struct {
	Location       string
	UserAgent      string
	BrowserContext string
}

// ResolveLocation looks up the ISO 3166 location ("CC" or "CC-RR") for ipString.
// An unparseable IP or an address missing from the database yields "".
func ResolveLocation(g *geoip.GeoIP, ipString string) (string, error) {
	if g == nil {
		return "", ErrNilGeoIP
	}
	ip := net.ParseIP(ipString)
	if ip == nil {
		return "", nil
	}
	return g.Location(ip), nil
}

// ClientIP extracts the originating client address, preferring the first
// X-Forwarded-For hop and falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	ipStr := r.Header.Get("X-Forwarded-For")
	if ipStr == "" {
		ipStr = r.RemoteAddr
		// Remove port if present
		if host, _, err := net.SplitHostPort(ipStr); err == nil {
			ipStr = host
		}
		return ipStr
	}
	// X-Forwarded-For can be comma-separated, take first IP
	if idx := strings.Index(ipStr, ","); idx != -1 {
		ipStr = ipStr[:idx]
	}
	return strings.TrimSpace(ipStr)
}

// ResolveTargetingFromRequest derives the location from the client IP (when a
// GeoIP database is configured) and classifies the User-Agent.
func ResolveTargetingFromRequest(r *http.Request, g *geoip.GeoIP) RequestTargeting {
	ua := r.Header.Get("User-Agent")
	rt := RequestTargeting{
		UserAgent:      ua,
		BrowserContext: string(ClassifyBrowserContext(ua)),
	}
	if g != nil {
		rt.Location, _ = ResolveLocation(g, ClientIP(r))
	}
	return rt
}
