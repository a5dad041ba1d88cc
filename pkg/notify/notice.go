package notify

import "time"

// FeedingNotice reports a servo run.
type FeedingNotice struct {
	Device     string    `json:"device"`
	Source     string    `json:"source"`
	Slot       int       `json:"slot"`
	DurationMS int64     `json:"duration_ms"`
	Started    bool      `json:"started"`
	At         time.Time `json:"at"`
}

// ScheduleNotice reports a slot being set or erased.
type ScheduleNotice struct {
	Device     string    `json:"device"`
	Slot       int       `json:"slot"`
	Time       string    `json:"time,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Erased     bool      `json:"erased"`
	At         time.Time `json:"at"`
}

// Status payloads.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topic suffixes.
const (
	TopicFeeding  = "feeding"
	TopicSchedule = "schedule"
	TopicStatus   = "status"
)
