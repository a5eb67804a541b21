package models

import "time"

// RawMessage is one channel post as delivered by the ingestion collaborator.
// The core never mutates it.
type RawMessage struct {
	Source       string    `json:"source"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	MessageID    int64     `json:"message_id"`
	Timestamp    time.Time `json:"timestamp"`
	Text         string    `json:"text"`
}
