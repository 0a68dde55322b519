package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/festa/internal/formatter"
	"github.com/desertthunder/festa/internal/models"
)

var _ list.Item = roomItem{}

// roomItem wraps [models.Room] to implement [list.Item].
type roomItem struct {
	room   models.Room
	post   *models.Post
	unread bool
	now    time.Time
}

func (i roomItem) FilterValue() string { return i.room.DisplayName() }

func (i roomItem) Title() string {
	title := i.room.DisplayName()
	if i.unread && i.room.UnreadCount > 0 {
		title = fmt.Sprintf("%s %s", title, styles.badge.Render(fmt.Sprint(i.room.UnreadCount)))
	}
	return title
}

func (i roomItem) Description() string {
	var parts []string
	if i.post != nil && i.post.EventTitle != "" {
		parts = append(parts, i.post.EventTitle)
	}
	if i.room.LastMessage != nil {
		parts = append(parts, i.room.LastMessage.Text, formatter.RelativeTime(i.room.LastMessage.Timestamp, i.now))
	} else if i.room.Information != "" {
		parts = append(parts, i.room.Information)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d members", i.room.ParticipantCount)
	}
	return strings.Join(parts, " • ")
}
