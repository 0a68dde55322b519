package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DeletedPlaceholder replaces the content of deleted messages.
	DeletedPlaceholder = "This message has been deleted."
	// UnknownSender is shown for senders whose name is blank, e.g. withdrawn accounts.
	UnknownSender = "Unknown"
)

// Message is one entry of a room's message log.
type Message struct {
	ID             int64
	RoomID         int64
	SenderVerifyID string
	SenderMemberID int64
	SenderName     string
	Content        string
	ContentType    ContentType
	MediaURL       string
	CreatedAt      time.Time
	Deleted        bool
}

// DisplayText maps the content type to the string shown in the log.
func (m Message) DisplayText() string {
	switch {
	case m.Deleted:
		return DeletedPlaceholder
	case m.ContentType == ContentImage && m.MediaURL != "":
		return fmt.Sprintf("[Image: %s]", m.MediaURL)
	case m.ContentType == ContentFile && m.MediaURL != "":
		return fmt.Sprintf("[File: %s]", m.Content)
	default:
		return m.Content
	}
}

// DisplaySender returns the sender name or [UnknownSender].
func (m Message) DisplaySender() string {
	if strings.TrimSpace(m.SenderName) == "" {
		return UnknownSender
	}
	return m.SenderName
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime accepts RFC 3339 timestamps and the zone-less local date times the server emits.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
