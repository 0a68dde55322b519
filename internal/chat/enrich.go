package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/repositories"
	"github.com/desertthunder/festa/internal/shared"
)

// PostFetcher loads a meetup post. [*services.Client] implements it.
type PostFetcher interface {
	Post(ctx context.Context, postID int64) (*models.Post, error)
}

// Enricher resolves the originating post of companion rooms. Resolved posts
// are cached in store; ids that come back not-found or invalid go to the
// failed cache and are never requested again. Transient failures are retried
// on the next call.
type Enricher struct {
	fetcher PostFetcher
	failed  *FailedReferenceCache
	store   repositories.Store
	logger  *log.Logger

	mu sync.Mutex
}

func NewEnricher(fetcher PostFetcher, failed *FailedReferenceCache, store repositories.Store, logger *log.Logger) *Enricher {
	return &Enricher{fetcher: fetcher, failed: failed, store: store, logger: logger}
}

// Enrich returns room id → post for every companion room whose post could be resolved.
func (e *Enricher) Enrich(ctx context.Context, rooms []models.Room) map[int64]*models.Post {
	e.mu.Lock()
	defer e.mu.Unlock()

	posts := make(map[int64]*models.Post)
	for _, r := range rooms {
		if !r.IsCompanion() || r.OriginPostID == nil {
			continue
		}
		postID := *r.OriginPostID

		if post, ok := e.cached(postID); ok {
			posts[r.ID] = post
			continue
		}
		if e.failed.Contains(postID) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		post, err := e.fetcher.Post(ctx, postID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInvalidReference) {
				e.logger.Info("post is gone, not retrying", "post", postID, "room", r.ID)
				if err := e.failed.Add(postID); err != nil {
					e.logger.Warn("failed to record failed post", "post", postID, "err", err)
				}
			} else {
				e.logger.Warn("post enrichment failed, will retry", "post", postID, "err", err)
			}
			continue
		}

		e.remember(postID, post)
		posts[r.ID] = post
	}
	return posts
}

func (e *Enricher) cached(postID int64) (*models.Post, bool) {
	raw, ok, err := e.store.Get(repositories.NamespaceEnrichedPosts, strconv.FormatInt(postID, 10))
	if err != nil || !ok {
		return nil, false
	}
	var post models.Post
	if err := json.Unmarshal([]byte(raw), &post); err != nil {
		return nil, false
	}
	return &post, true
}

func (e *Enricher) remember(postID int64, post *models.Post) {
	data, err := json.Marshal(post)
	if err != nil {
		return
	}
	if err := e.store.Put(repositories.NamespaceEnrichedPosts, strconv.FormatInt(postID, 10), string(data)); err != nil {
		e.logger.Warn("failed to cache post", "post", postID, "err", err)
	}
}
