// Package useragent classifies User-Agent strings into coarse device types
// for access records.
package useragent

import (
	"fmt"
	"os"
	"strings"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

// Parser wraps the uap-go parser with device type classification.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

// DeviceInfo is the result of parsing one User-Agent string.
type DeviceInfo struct {
	DeviceType string // mobile, desktop, tablet, bot, unknown
	Browser    string
	OS         string
	Raw        string
}

// NewParser builds a parser instance. An empty path uses the regex
// definitions shipped with uap-go; a non-empty path overrides them with a
// custom regexes file. There is no process-wide singleton; callers pass the
// instance where it is needed.
func NewParser(regexFilePath string, log *zap.Logger) (*Parser, error) {
	var parser *uaparser.Parser
	var err error

	if regexFilePath == "" {
		parser = uaparser.NewFromSaved()
		log.Info("User-Agent parser initialized from embedded definitions")
	} else {
		var regexBytes []byte
		regexBytes, err = os.ReadFile(regexFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read regexes file %s: %w", regexFilePath, err)
		}

		parser, err = uaparser.NewFromBytes(regexBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to create User-Agent parser: %w", err)
		}
		log.Info("User-Agent parser initialized", zap.String("regexes_file", regexFilePath))
	}

	return &Parser{
		parser: parser,
		log:    log,
	}, nil
}

// ParseUserAgent classifies a User-Agent string.
func (p *Parser) ParseUserAgent(userAgent string) *DeviceInfo {
	if userAgent == "" {
		return &DeviceInfo{
			DeviceType: "unknown",
			Browser:    "unknown",
			OS:         "unknown",
		}
	}

	client := p.parser.Parse(userAgent)

	info := &DeviceInfo{
		Browser: orUnknown(client.UserAgent.Family),
		OS:      orUnknown(client.Os.Family),
		Raw:     userAgent,
	}
	info.DeviceType = p.deviceType(client, userAgent)

	return info
}

func (p *Parser) deviceType(client *uaparser.Client, userAgent string) string {
	if isBot(client.UserAgent.Family, userAgent) {
		return "bot"
	}

	deviceFamily := client.Device.Family
	osFamily := client.Os.Family

	if deviceFamily != "" && deviceFamily != "Other" {
		if containsAny(deviceFamily, tabletDevices) {
			return "tablet"
		}
		if containsAny(deviceFamily, mobileDevices) {
			return "mobile"
		}
	}

	if containsAny(osFamily, mobileOSes) {
		if isTabletUA(osFamily, userAgent) {
			return "tablet"
		}
		return "mobile"
	}

	if containsAny(osFamily, desktopOSes) {
		return "desktop"
	}

	return "unknown"
}

var (
	botIndicators = []string{
		"Googlebot", "Bingbot", "Slurp", "DuckDuckBot", "Baiduspider",
		"YandexBot", "facebookexternalhit", "Twitterbot", "LinkedInBot",
		"WhatsApp", "Telegram", "SkypeUriPreview", "bot", "crawler",
		"spider", "scraper",
	}
	mobileDevices = []string{"iPhone", "Android", "BlackBerry", "Windows Phone", "Mobile", "Phone"}
	tabletDevices = []string{"iPad", "Tablet", "Kindle", "Surface"}
	mobileOSes    = []string{"iOS", "Android", "Windows Phone", "BlackBerry OS", "Firefox OS", "Sailfish OS"}
	desktopOSes   = []string{"Windows", "Mac OS X", "macOS", "Linux", "Ubuntu", "Chrome OS", "FreeBSD", "OpenBSD", "NetBSD"}
)

func isBot(uaFamily, userAgent string) bool {
	return containsAny(uaFamily, botIndicators) || containsAny(userAgent, botIndicators)
}

// isTabletUA separates tablets from phones on shared mobile OS families.
func isTabletUA(osFamily, userAgent string) bool {
	if containsFold(osFamily, "iOS") {
		return containsFold(userAgent, "iPad")
	}
	if containsFold(osFamily, "Android") {
		// Android tablets typically omit "Mobile" from the User-Agent.
		return !containsFold(userAgent, "Mobile")
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if containsFold(s, needle) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	if s == "" || substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func orUnknown(s string) string {
	if s == "" || s == "Other" {
		return "unknown"
	}
	return s
}
