package models

import "time"

// Location is a coarse client position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
}

// Hit is the telemetry record emitted for one click.
type Hit struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	CreatorID        string    `json:"creator_id"`
	RouteID          string    `json:"route_id"`
	WorkspaceID      string    `json:"workspace_id"`
	Destination      string    `json:"destination"`
	IP               string    `json:"ip"`
	Continent        string    `json:"continent"`
	Country          string    `json:"country"`
	Location         *Location `json:"location,omitempty"`
	OSFamily         string    `json:"os_family"`
	OSVersion        string    `json:"os_version"`
	UAFamily         string    `json:"ua_family"`
	UAVersion        string    `json:"ua_version"`
	DeviceBrand      string    `json:"device_brand"`
	DeviceFamily     string    `json:"device_family"`
	DeviceModel      string    `json:"device_model"`
	SessionFirstSeen time.Time `json:"session_first_seen"`
	SessionClicks    int       `json:"session_clicks"`
	IsUnique         bool      `json:"is_unique"`
	IsBot            bool      `json:"is_bot"`
	CreatedAt        time.Time `json:"created_at"`
}
