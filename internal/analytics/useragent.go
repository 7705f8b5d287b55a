package analytics

import (
	"regexp"
	"strings"

	"github.com/portalo/portalo/internal/model"
)

var (
	tabletUA = regexp.MustCompile(`(?i)tablet|ipad|playbook|silk`)
	mobileUA = regexp.MustCompile(`(?i)mobile|iphone|ipod|android.*mobile|windows phone`)
)

// DetectDevice classifies a User-Agent as tablet, mobile or desktop.
// Returns "" for an empty User-Agent.
func DetectDevice(ua string) string {
	switch {
	case ua == "":
		return ""
	case tabletUA.MatchString(ua):
		return model.DeviceTablet
	case mobileUA.MatchString(ua):
		return model.DeviceMobile
	default:
		return model.DeviceDesktop
	}
}

// DetectBrowser maps a User-Agent to a browser family. Order matters: Edge
// and Opera also advertise Chrome, and Chrome advertises Safari.
func DetectBrowser(ua string) string {
	switch {
	case ua == "":
		return ""
	case strings.Contains(ua, "Firefox/"):
		return "Firefox"
	case strings.Contains(ua, "Edg/"):
		return "Edge"
	case strings.Contains(ua, "OPR/"), strings.Contains(ua, "Opera/"):
		return "Opera"
	case strings.Contains(ua, "Chrome/"):
		return "Chrome"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	default:
		return "Other"
	}
}
