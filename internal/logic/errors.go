package logic

import "errors"

// ErrNilGeoIP is returned when a location lookup is attempted without a GeoIP database.
var ErrNilGeoIP = errors.New("geoip database is nil")
