package logic

import (
	"strings"

	"github.com/avct/uasurfer"

	"github.com/patrickwarner/billboardserve/internal/models"
)

// inAppMarkers are the tokens the native apps append to their webview User-Agent.
var inAppMarkers = []string{
	"DEV-Native-ios",
	"DEV-Native-android",
	"ForemWebView",
}

// ClassifyBrowserContext maps a raw User-Agent to the browser context a
// billboard may be limited to. The first matching rule wins: native in-app
// markers, then mobile browsers, then any other recognizable agent as
// desktop. Empty and unrecognizable agents are unknown.
func ClassifyBrowserContext(ua string) models.BrowserContext {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return models.BrowserUnknown
	}
	for _, marker := range inAppMarkers {
		if strings.Contains(ua, marker) {
			return models.BrowserMobileInApp
		}
	}

	u := uasurfer.Parse(ua)
	switch u.DeviceType {
	case uasurfer.DevicePhone, uasurfer.DeviceTablet:
		return models.BrowserMobileWeb
	}
	if strings.Contains(ua, "Mobile") {
		return models.BrowserMobileWeb
	}

	if u.DeviceType == uasurfer.DeviceUnknown &&
		u.Browser.Name == uasurfer.BrowserUnknown &&
		u.OS.Name == uasurfer.OSUnknown {
		return models.BrowserUnknown
	}
	return models.BrowserDesktop
}

// MatchesBrowserContext reports whether a billboard limited to want may be
// shown to a visitor whose agent classified as got. Unknown agents see
// everything.
func MatchesBrowserContext(want, got models.BrowserContext) bool {
	if want == models.BrowserAllBrowsers || want == "" {
		return true
	}
	if got == models.BrowserUnknown {
		return true
	}
	return want == got
}
