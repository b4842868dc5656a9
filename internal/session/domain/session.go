package domain

import (
	"strings"
	"time"
)

// maxUserAgentLen bounds the stored user-agent snapshot.
const maxUserAgentLen = 256

// DeviceClass is the broad device category of a session's client.
type DeviceClass string

const (
	DeviceClassDesktop DeviceClass = "desktop"
	DeviceClassMobile  DeviceClass = "mobile"
	DeviceClassTablet  DeviceClass = "tablet"
)

// DeviceInfo is a point-in-time snapshot of the client that opened a session.
// Informational only; never used for authorization decisions.
type DeviceInfo struct {
	Browser    string
	OS         string
	Class      DeviceClass
	UserAgent  string // truncated to maxUserAgentLen
	CapturedAt time.Time
}

// Session binds one issued authentication token to one user and one device.
type Session struct {
	ID             string
	UserID         string
	TokenHash      string // SHA-256 digest of the bearer token; unique across all sessions
	Device         DeviceInfo
	CreatedAt      time.Time
	ExpiresAt      time.Time // CreatedAt + session duration; moved only by an explicit extend
	LastActivityAt time.Time // updated by heartbeat; liveness diagnostics only
	IsActive       bool
}

// Live reports whether the session counts against the device cap at the given
// instant: active flag set and not yet expired.
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

// Remaining returns the time left until expiry at the given instant.
// Negative once the session has expired.
func (s *Session) Remaining(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// CaptureDevice derives a DeviceInfo snapshot from a raw user-agent string.
// Unrecognized agents fall back to "unknown" families and the desktop class.
func CaptureDevice(userAgent string, at time.Time) DeviceInfo {
	ua := userAgent
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	return DeviceInfo{
		Browser:    browserFamily(userAgent),
		OS:         osFamily(userAgent),
		Class:      deviceClass(userAgent),
		UserAgent:  ua,
		CapturedAt: at,
	}
}

// Label returns a short human-readable device description for eviction notices,
// e.g. "Chrome on Windows".
func (d DeviceInfo) Label() string {
	return d.Browser + " on " + d.OS
}

func browserFamily(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "edg/"), strings.Contains(l, "edge"):
		return "Edge"
	case strings.Contains(l, "opr/"), strings.Contains(l, "opera"):
		return "Opera"
	case strings.Contains(l, "firefox"):
		return "Firefox"
	case strings.Contains(l, "chrome"):
		return "Chrome"
	case strings.Contains(l, "safari"):
		return "Safari"
	default:
		return "unknown"
	}
}

func osFamily(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "windows"):
		return "Windows"
	case strings.Contains(l, "android"):
		return "Android"
	case strings.Contains(l, "iphone"), strings.Contains(l, "ipad"), strings.Contains(l, "ios"):
		return "iOS"
	case strings.Contains(l, "mac os"), strings.Contains(l, "macintosh"):
		return "macOS"
	case strings.Contains(l, "linux"):
		return "Linux"
	default:
		return "unknown"
	}
}

func deviceClass(ua string) DeviceClass {
	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "ipad"), strings.Contains(l, "tablet"):
		return DeviceClassTablet
	case strings.Contains(l, "mobile"), strings.Contains(l, "iphone"), strings.Contains(l, "android"):
		return DeviceClassMobile
	default:
		return DeviceClassDesktop
	}
}
