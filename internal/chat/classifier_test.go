package chat

import (
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/festa/internal/models"
)

type suppressSet map[int64]bool

func (s suppressSet) IsSuppressed(id int64) bool { return s[id] }

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		room       models.Room
		suppressed bool
		want       Category
	}{
		{"read group", groupRoom(1, 0, "", epoch), false, CategoryGroup},
		{"unread group", groupRoom(1, 2, "", epoch), false, CategoryUnread},
		{"suppressed unread group", groupRoom(1, 2, "", epoch), true, CategoryGroup},
		{"read direct", directRoom(1, 0), false, CategoryMy},
		{"unread direct", directRoom(1, 1), false, CategoryUnread},
		{"suppressed direct", directRoom(1, 1), true, CategoryMy},
		{"negative unread", directRoom(1, -1), false, CategoryMy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classifier{Tracker: suppressSet{tt.room.ID: tt.suppressed}}
			if got := c.Classify(tt.room); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("nil tracker never suppresses", func(t *testing.T) {
		if got := (Classifier{}).Classify(directRoom(1, 3)); got != CategoryUnread {
			t.Errorf("Classify() = %v, want unread", got)
		}
	})
}

func TestViews(t *testing.T) {
	rooms := []models.Room{
		groupRoom(1, 0, "old", epoch),
		groupRoom(2, 3, "newest", epoch.Add(2*time.Hour)),
		companionRoom(3, 30, 1),
		directRoom(4, 2),
		groupRoom(5, 0, "mid", epoch.Add(time.Hour)),
	}
	c := Classifier{Tracker: suppressSet{4: true}}
	v := c.Views(rooms)

	t.Run("my excludes companions and directs but keeps unread groups", func(t *testing.T) {
		if got, want := ids(v.My), []int64{2, 5, 1}; !slices.Equal(got, want) {
			t.Errorf("My = %v, want %v", got, want)
		}
	})

	t.Run("unread spans kinds and honours suppression", func(t *testing.T) {
		if got, want := ids(v.Unread), []int64{2, 3}; !slices.Equal(got, want) {
			t.Errorf("Unread = %v, want %v", got, want)
		}
	})

	t.Run("companion", func(t *testing.T) {
		if got := ids(v.Companion); !slices.Equal(got, []int64{3}) {
			t.Errorf("Companion = %v", got)
		}
	})

	t.Run("all is sorted with silent rooms last in server order", func(t *testing.T) {
		if got, want := ids(v.All), []int64{2, 5, 1, 3, 4}; !slices.Equal(got, want) {
			t.Errorf("All = %v, want %v", got, want)
		}
	})

	t.Run("input order untouched", func(t *testing.T) {
		if got := ids(rooms); !slices.Equal(got, []int64{1, 2, 3, 4, 5}) {
			t.Errorf("input reordered: %v", got)
		}
	})
}

func TestByLastMessageTies(t *testing.T) {
	rooms := []models.Room{
		groupRoom(7, 0, "a", epoch),
		groupRoom(3, 0, "b", epoch),
		groupRoom(9, 0, "c", epoch),
	}
	if got := ids(byLastMessage(rooms)); !slices.Equal(got, []int64{7, 3, 9}) {
		t.Errorf("equal timestamps should keep server order, got %v", got)
	}
}

func TestBrowsableGroupRooms(t *testing.T) {
	mine := []models.Room{groupRoom(1, 0, "", epoch), companionRoom(2, 20, 0)}
	page := []models.Room{
		groupRoom(1, 0, "", epoch),
		groupRoom(2, 0, "", epoch),
		companionRoom(3, 30, 0),
		groupRoom(4, 0, "", epoch),
	}

	got := ids(BrowsableGroupRooms(page, mine))
	if want := []int64{2, 4}; !slices.Equal(got, want) {
		t.Errorf("BrowsableGroupRooms = %v, want %v", got, want)
	}

	joined := JoinedGroupIDs(mine)
	if !joined[1] || joined[2] {
		t.Errorf("JoinedGroupIDs = %v, want only 1", joined)
	}
}
