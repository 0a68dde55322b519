package chat

import (
	"slices"
	"sort"
	"sync"

	"github.com/desertthunder/festa/internal/models"
)

// MessageLog is a room's messages ordered by createdAt, deduplicated by id.
//
// History pages and live events are merged the same way, so their arrival
// order does not matter: a history fetch that lands after live messages adds
// to them instead of replacing them.
type MessageLog struct {
	mu       sync.RWMutex
	messages []models.Message
	index    map[int64]int
}

func NewMessageLog() *MessageLog {
	return &MessageLog{index: make(map[int64]int)}
}

// Merge adds msgs and returns how many were new. A message whose id is already
// present replaces the stored copy in place, which is how deletions arrive.
func (l *MessageLog) Merge(msgs ...models.Message) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for _, m := range msgs {
		if i, ok := l.index[m.ID]; ok {
			m.CreatedAt = l.messages[i].CreatedAt
			l.messages[i] = m
			continue
		}
		l.messages = append(l.messages, m)
		l.index[m.ID] = len(l.messages) - 1
		added++
	}
	if added == 0 {
		return 0
	}

	sort.SliceStable(l.messages, func(i, j int) bool {
		return l.messages[i].CreatedAt.Before(l.messages[j].CreatedAt)
	})
	for i, m := range l.messages {
		l.index[m.ID] = i
	}
	return added
}

// Messages returns a copy of the log.
func (l *MessageLog) Messages() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.messages)
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
