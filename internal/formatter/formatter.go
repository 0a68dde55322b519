// package formatter renders room lists and message logs as plain text, Markdown or CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/shared"
	"github.com/dustin/go-humanize"
)

// Format is an export format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// ParseFormat accepts text, txt, markdown, md and csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext is the file extension for the format.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatCSV:
		return "csv"
	default:
		return "txt"
	}
}

// RelativeTime renders t relative to now, e.g. "3 minutes ago". A zero time is "never".
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if d := now.Sub(t); d >= 0 && d < time.Second {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// RoomLine is the one-line summary used by the CLI room listings.
func RoomLine(r models.Room, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%6d  %s", r.ID, r.DisplayName())
	if r.UnreadCount > 0 {
		fmt.Fprintf(&b, " (%d unread)", r.UnreadCount)
	}
	if r.ParticipantCount > 0 {
		fmt.Fprintf(&b, " · %s", humanize.Comma(int64(r.ParticipantCount))+" members")
	}
	if r.LastMessage != nil {
		fmt.Fprintf(&b, "\n        %s · %s", r.LastMessage.Text, RelativeTime(r.LastMessage.Timestamp, now))
	}
	return b.String()
}

// RoomsToText lists rooms under a heading, one [RoomLine] each.
func RoomsToText(heading string, rooms []models.Room, now time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s (%d)\n", heading, len(rooms))
	if len(rooms) == 0 {
		buf.WriteString("  none\n")
	}
	for _, r := range rooms {
		buf.WriteString(RoomLine(r, now))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// RoomsToCSV converts rooms to CSV with columns: ID, Name, Kind, Origin, Participants, Unread, LastMessage, LastMessageAt
func RoomsToCSV(rooms []models.Room) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Name", "Kind", "Origin", "Participants", "Unread", "LastMessage", "LastMessageAt"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range rooms {
		var text, at string
		if r.LastMessage != nil {
			text = r.LastMessage.Text
			at = r.LastMessage.Timestamp.Format(time.RFC3339)
		}
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.DisplayName(),
			string(r.Kind),
			string(r.Origin),
			strconv.Itoa(r.ParticipantCount),
			strconv.Itoa(r.UnreadCount),
			text,
			at,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// MessageLine renders "[HH:MM] sender: text". Deleted messages show the placeholder.
func MessageLine(m models.Message) string {
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), m.DisplaySender(), m.DisplayText())
}

// MessagesToText renders a message log with a title line and day separators.
func MessagesToText(title string, msgs []models.Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Room: %s\n", title)
	fmt.Fprintf(&buf, "Messages: %d\n", len(msgs))

	var day string
	for _, m := range msgs {
		if d := m.CreatedAt.Local().Format(time.DateOnly); d != day {
			day = d
			fmt.Fprintf(&buf, "\n-- %s --\n", day)
		}
		buf.WriteString(MessageLine(m))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// MessagesToMarkdown renders a message log as a Markdown document grouped by day.
func MessagesToMarkdown(title string, msgs []models.Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Messages**: %d\n", len(msgs))

	var day string
	for _, m := range msgs {
		if d := m.CreatedAt.Local().Format(time.DateOnly); d != day {
			day = d
			fmt.Fprintf(&buf, "\n## %s\n\n", day)
		}
		text := m.DisplayText()
		if m.Deleted {
			text = "_" + text + "_"
		} else if m.ContentType == models.ContentImage && m.MediaURL != "" {
			text = fmt.Sprintf("![image](%s)", m.MediaURL)
		}
		fmt.Fprintf(&buf, "- **%s** %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.DisplaySender(), text)
	}
	return buf.Bytes()
}

// MessagesToCSV converts messages to CSV with columns: ID, CreatedAt, Sender, Type, Content, Deleted
func MessagesToCSV(msgs []models.Message) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "CreatedAt", "Sender", "Type", "Content", "Deleted"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, m := range msgs {
		record := []string{
			strconv.FormatInt(m.ID, 10),
			m.CreatedAt.Format(time.RFC3339),
			m.DisplaySender(),
			string(m.ContentType),
			m.DisplayText(),
			strconv.FormatBool(m.Deleted),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderHistory renders msgs in the given format.
func RenderHistory(format Format, title string, msgs []models.Message) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return MessagesToMarkdown(title, msgs), nil
	case FormatCSV:
		return MessagesToCSV(msgs)
	default:
		return MessagesToText(title, msgs), nil
	}
}

// WriteHistoryExport writes a room's history to path.
//
// Defaults to room_{id}_history.{ext} as the filename.
func WriteHistoryExport(format Format, roomID int64, title string, msgs []models.Message, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("room_%d_history.%s", roomID, format.Ext())
	}

	data, err := RenderHistory(format, title, msgs)
	if err != nil {
		return "", fmt.Errorf("failed to render history: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write history file: %w", err)
	}
	return path, nil
}
