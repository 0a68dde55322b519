package chat

import (
	"slices"
	"sort"

	"github.com/desertthunder/festa/internal/models"
)

// Category is the list a room is classified into.
type Category int

const (
	CategoryMy Category = iota
	CategoryUnread
	CategoryGroup
)

func (c Category) String() string {
	switch c {
	case CategoryUnread:
		return "unread"
	case CategoryGroup:
		return "group"
	default:
		return "my"
	}
}

// Suppressor hides unread state for recently active rooms. [*ReadTracker] implements it.
type Suppressor interface {
	IsSuppressed(roomID int64) bool
}

// Classifier derives room views. It has no state of its own.
type Classifier struct {
	Tracker Suppressor
}

// Classify puts a room in exactly one category: unread when the server reports
// unread messages that are not locally suppressed, otherwise group for group
// rooms, otherwise my.
func (c Classifier) Classify(r models.Room) Category {
	if r.UnreadCount >= 1 && !c.suppressed(r.ID) {
		return CategoryUnread
	}
	if r.Kind == models.KindGroup {
		return CategoryGroup
	}
	return CategoryMy
}

func (c Classifier) suppressed(roomID int64) bool {
	return c.Tracker != nil && c.Tracker.IsSuppressed(roomID)
}

// IsUnread reports whether the room should show an unread badge.
func (c Classifier) IsUnread(r models.Room) bool {
	return c.Classify(r) == CategoryUnread
}

// MyRooms returns non-companion group rooms regardless of unread state, newest activity first.
func (c Classifier) MyRooms(rooms []models.Room) []models.Room {
	return byLastMessage(filter(rooms, func(r models.Room) bool {
		return r.Kind == models.KindGroup && !r.IsCompanion()
	}))
}

// UnreadRooms returns rooms of any kind classified unread, newest activity first.
func (c Classifier) UnreadRooms(rooms []models.Room) []models.Room {
	return byLastMessage(filter(rooms, c.IsUnread))
}

// CompanionRooms returns rooms spawned from meetup posts, newest activity first.
func (c Classifier) CompanionRooms(rooms []models.Room) []models.Room {
	return byLastMessage(filter(rooms, models.Room.IsCompanion))
}

// JoinedGroupIDs returns the ids that count as joined for browsing: non-companion group rooms only.
func JoinedGroupIDs(rooms []models.Room) map[int64]bool {
	joined := make(map[int64]bool)
	for _, r := range rooms {
		if r.Kind == models.KindGroup && !r.IsCompanion() {
			joined[r.ID] = true
		}
	}
	return joined
}

// BrowsableGroupRooms filters one server page of group rooms down to the ones
// the user can join. Server order is kept. Membership in a companion room does
// not exclude it.
func BrowsableGroupRooms(page, mine []models.Room) []models.Room {
	joined := JoinedGroupIDs(mine)
	return filter(page, func(r models.Room) bool {
		return !r.IsCompanion() && !joined[r.ID]
	})
}

// Views is the classified room list handed to the view layer.
type Views struct {
	My        []models.Room
	Unread    []models.Room
	Companion []models.Room
	All       []models.Room
}

// Views computes every list view from one snapshot.
func (c Classifier) Views(rooms []models.Room) Views {
	return Views{
		My:        c.MyRooms(rooms),
		Unread:    c.UnreadRooms(rooms),
		Companion: c.CompanionRooms(rooms),
		All:       byLastMessage(rooms),
	}
}

func filter(rooms []models.Room, keep func(models.Room) bool) []models.Room {
	out := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// byLastMessage sorts a copy by last message time, newest first. Equal
// timestamps keep server order and rooms without messages go last.
func byLastMessage(rooms []models.Room) []models.Room {
	out := slices.Clone(rooms)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out
}
