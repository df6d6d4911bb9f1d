package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// DeviceInfo is what a booking or audit entry records about the client device
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, unknown
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	BrowserVer string `json:"browser_ver"`
	Platform   string `json:"platform"` // android, ios, windows, mac, linux
	IsBot      bool   `json:"is_bot"`
}

var tabletHints = []string{"ipad", "tablet", "kindle", "playbook", "nexus 7", "nexus 9", "nexus 10", "sm-t"}

var platforms = []struct {
	match    string
	platform string
}{
	{"android", "android"},
	{"iphone os", "ios"},
	{"ios", "ios"},
	{"chrome os", "chromeos"},
	{"windows", "windows"},
	{"mac os x", "mac"},
	{"macos", "mac"},
	{"ubuntu", "linux"},
	{"linux", "linux"},
}

// ParseUserAgent extracts device information from a User-Agent header
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceInfo{
			DeviceType: "unknown",
			OS:         "Unknown",
			Browser:    "Unknown",
			Platform:   "unknown",
		}
	}

	parser := ua.New(userAgent)
	browser, version := parser.Browser()
	if browser == "" {
		browser = "Unknown"
	}

	osInfo := parser.OSInfo()
	osName := osInfo.Name
	if osName == "" {
		osName = "Unknown"
	} else if osInfo.Version != "" {
		osName += " " + osInfo.Version
	}

	return DeviceInfo{
		DeviceType: deviceType(parser),
		OS:         osName,
		Browser:    browser,
		BrowserVer: version,
		Platform:   platformOf(osInfo.Name),
		IsBot:      parser.Bot(),
	}
}

// Metadata flattens the device info into booking metadata keys
func (d DeviceInfo) Metadata() map[string]string {
	return map[string]string{
		"device_type": d.DeviceType,
		"os":          d.OS,
		"browser":     d.Browser,
		"platform":    d.Platform,
	}
}

func deviceType(parser *ua.UserAgent) string {
	if !parser.Mobile() {
		return "desktop"
	}
	lower := strings.ToLower(parser.UA())
	for _, hint := range tabletHints {
		if strings.Contains(lower, hint) {
			return "tablet"
		}
	}
	return "mobile"
}

func platformOf(osName string) string {
	lower := strings.ToLower(osName)
	for _, p := range platforms {
		if strings.Contains(lower, p.match) {
			return p.platform
		}
	}
	return "unknown"
}
