package models

import (
	"strings"

	"github.com/samber/lo"
)

// FeatureTracking is the skip-list entry that disables click registration.
const FeatureTracking = "tracking"

// UserSettings are per-owner switches read on the request path.
type UserSettings struct {
	Status   StatusState `json:"status"`
	Debug    bool        `json:"debug"`
	Overflow bool        `json:"overflow"`
	Skip     []string    `json:"skip,omitempty"`
	// AllowedRequestParams lists request query keys forwarded to the destination.
	AllowedRequestParams []string `json:"allowed_request_params,omitempty"`
	// AllowedDestinationParams lists destination query keys a forwarded
	// request value may overwrite.
	AllowedDestinationParams []string `json:"allowed_destination_params,omitempty"`
}

// Skips reports whether feature is on the owner's skip list.
func (s *UserSettings) Skips(feature string) bool {
	if s == nil {
		return false
	}
	return lo.ContainsBy(s.Skip, func(item string) bool {
		return strings.EqualFold(item, feature)
	})
}

// Blocked reports whether the owner account is blocked. Its routes do not resolve.
func (s *UserSettings) Blocked() bool {
	return s != nil && s.Status == StateBlocked
}

// TrackingAllowed is false when the owner opted out of tracking or is over quota.
func (s *UserSettings) TrackingAllowed() bool {
	if s == nil {
		return true
	}
	return !s.Overflow && !s.Skips(FeatureTracking)
}
