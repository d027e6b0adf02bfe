package models

import "time"

// PageViewMessage is enqueued for every view of a link page and persisted
// by the workers as a link_analytics row.
type PageViewMessage struct {
	LinkID     string    `json:"link_id"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	DeviceType string    `json:"device_type"`
	ViewedAt   time.Time `json:"viewed_at"`
}
