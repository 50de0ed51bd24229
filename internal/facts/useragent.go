package facts

import (
	"strings"

	"github.com/mssola/useragent"
)

// Agent is what the user agent string says about the client.
type Agent struct {
	UAFamily     string
	UAVersion    string
	OSFamily     string
	OSVersion    string
	DeviceFamily string
	DeviceBrand  string
	DeviceModel  string
	IsBot        bool
}

// Device families.
const (
	DeviceDesktop    = "Desktop"
	DeviceSmartphone = "Smartphone"
	DeviceTablet     = "Tablet"
	DeviceSpider     = "Spider"
	unknown          = "Other"
)

// ParseUserAgent derives the agent facts. An empty string yields "Other" families.
func ParseUserAgent(raw string) Agent {
	if strings.TrimSpace(raw) == "" {
		return Agent{UAFamily: unknown, OSFamily: unknown, DeviceFamily: unknown}
	}

	ua := useragent.New(raw)
	agent := Agent{IsBot: ua.Bot()}

	agent.UAFamily, agent.UAVersion = ua.Browser()
	if agent.UAFamily == "" {
		agent.UAFamily = unknown
	}

	os := ua.OSInfo()
	agent.OSFamily, agent.OSVersion = os.Name, os.Version
	if agent.OSFamily == "" {
		agent.OSFamily = unknown
	}

	platform := ua.Platform()
	switch {
	case agent.IsBot:
		agent.DeviceFamily = DeviceSpider
	case platform == "iPad":
		agent.DeviceFamily, agent.DeviceBrand, agent.DeviceModel = DeviceTablet, "Apple", platform
	case platform == "iPhone" || platform == "iPod" || platform == "iPod touch":
		agent.DeviceFamily, agent.DeviceBrand, agent.DeviceModel = DeviceSmartphone, "Apple", platform
	case strings.EqualFold(agent.OSFamily, "Android"):
		if ua.Mobile() {
			agent.DeviceFamily = DeviceSmartphone
		} else {
			agent.DeviceFamily = DeviceTablet
		}
	case ua.Mobile():
		agent.DeviceFamily = DeviceSmartphone
	default:
		agent.DeviceFamily = DeviceDesktop
		if platform == "Macintosh" {
			agent.DeviceBrand = "Apple"
		}
	}
	return agent
}
