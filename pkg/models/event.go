package models

import "time"

type EventStatus string

const (
	EventCompleted EventStatus = "completed"
	EventCached    EventStatus = "cached"
	EventFailed    EventStatus = "failed"
)

// TranslationEvent 每次请求结束后发布的事件
type TranslationEvent struct {
	EventID        string      `json:"event_id"`
	Fingerprint    string      `json:"fingerprint"`
	FileName       string      `json:"file_name"`
	TargetLanguage string      `json:"target_language"`
	Source         SourceKind  `json:"source"`
	Status         EventStatus `json:"status"`
	ErrorType      string      `json:"error_type,omitempty"`
	Error          string      `json:"error,omitempty"`
	DurationMillis int64       `json:"duration_ms"`
	CreatedAt      time.Time   `json:"created_at"`
}
