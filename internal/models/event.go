package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType marks presence events on a room topic.
type EventType string

const (
	EventJoin  EventType = "JOIN"
	EventLeave EventType = "LEAVE"
)

// ErrIncompleteEvent is returned by [Event.Message] for payloads lacking an id or content.
var ErrIncompleteEvent = errors.New("event is missing message id or content")

// Event is the payload published on /topic/chat/room/{id}.
// Fields are optional because presence events and chat messages share the topic.
type Event struct {
	MessageID      *int64      `json:"messageId,omitempty"`
	ChatRoomID     int64       `json:"chatRoomId"`
	SenderID       *int64      `json:"senderId,omitempty"`
	SenderVerifyID string      `json:"senderVerifyId,omitempty"`
	SenderName     string      `json:"senderName,omitempty"`
	MemberID       *int64      `json:"memberId,omitempty"`
	MemberName     string      `json:"memberName,omitempty"`
	Content        *string     `json:"content,omitempty"`
	Type           ContentType `json:"type,omitempty"`
	EventType      EventType   `json:"eventType,omitempty"`
	CreatedAt      string      `json:"createdAt,omitempty"`
	Timestamp      string      `json:"timestamp,omitempty"`
	IsDeleted      bool        `json:"isDeleted,omitempty"`
	MediaURL       string      `json:"mediaUrl,omitempty"`
}

// ParseEvent decodes a topic payload.
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}

// IsPresence reports whether the event is a JOIN or LEAVE notice.
func (e Event) IsPresence() bool {
	return e.EventType == EventJoin || e.EventType == EventLeave
}

// SentAt returns createdAt, then timestamp, then fallback when neither parses.
func (e Event) SentAt(fallback time.Time) time.Time {
	for _, raw := range []string{e.CreatedAt, e.Timestamp} {
		if raw == "" {
			continue
		}
		if t, err := ParseTime(raw); err == nil {
			return t
		}
	}
	return fallback
}

// Message converts a chat event into a log entry. now is used when the event carries no timestamp.
func (e Event) Message(now time.Time) (Message, error) {
	if e.MessageID == nil || e.Content == nil || (*e.Content == "" && !e.IsDeleted) {
		return Message{}, ErrIncompleteEvent
	}

	msg := Message{
		ID:             *e.MessageID,
		RoomID:         e.ChatRoomID,
		SenderVerifyID: e.SenderVerifyID,
		SenderName:     e.SenderName,
		Content:        *e.Content,
		ContentType:    e.Type,
		MediaURL:       e.MediaURL,
		CreatedAt:      e.SentAt(now),
		Deleted:        e.IsDeleted,
	}
	if msg.ContentType == "" {
		msg.ContentType = ContentText
	}
	switch {
	case e.SenderID != nil:
		msg.SenderMemberID = *e.SenderID
	case e.MemberID != nil:
		msg.SenderMemberID = *e.MemberID
	}
	return msg, nil
}
