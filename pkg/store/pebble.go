package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/utils"
)

// Key layout:
//   post:<id>                          -> ThoughtPost JSON
//   posthist:<postID>:<ts>-<seq>       -> HistoryEntry JSON (append-only)
//   category:<id>                      -> Category JSON
//   prompt:<id>                        -> Prompt JSON
// History keys sort chronologically; entries are never rewritten and are
// kept when the parent post is deleted.

var db *pebble.DB

// mu serializes post read-modify-write cycles. Pebble has no transactions;
// the version check under this lock is what makes SavePost a real
// compare-and-swap within the process.
var mu sync.Mutex

// seq disambiguates history keys sharing a nanosecond timestamp.
var seq uint64

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

// Open opens (or creates) a pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool { return db != nil }

func postKey(id string) []byte     { return []byte("post:" + id) }
func categoryKey(id string) []byte { return []byte("category:" + id) }
func promptKey(id string) []byte   { return []byte("prompt:" + id) }

func histKey(postID string, ts int64, s uint64) []byte {
	return []byte(fmt.Sprintf("posthist:%s:%020d-%06d", postID, ts, s))
}

// SavePost persists a post with optimistic concurrency. The post's Version
// must equal the stored version (0 for a new post); on success the version
// is bumped and the saved copy returned. ErrVersionConflict signals the
// caller to redo its read-transform cycle.
func SavePost(p *models.ThoughtPost) (*models.ThoughtPost, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if p.ID == "" {
		return nil, fmt.Errorf("post id is required")
	}
	mu.Lock()
	defer mu.Unlock()

	cur, err := getPostLocked(p.ID)
	switch {
	case err == nil:
		if cur.Version != p.Version {
			return nil, fmt.Errorf("post %s: expected version %d, have %d: %w",
				p.ID, p.Version, cur.Version, ErrVersionConflict)
		}
	case errors.Is(err, ErrNotFound):
		if p.Version != 0 {
			return nil, fmt.Errorf("post %s: expected version %d, not stored: %w",
				p.ID, p.Version, ErrVersionConflict)
		}
	default:
		return nil, err
	}

	saved := p.Clone()
	saved.Version++
	now := time.Now().UTC()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	data, err := json.Marshal(saved)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}
	if err := db.Set(postKey(saved.ID), data, pebble.Sync); err != nil {
		logger.Error("save_post_failed", "post", saved.ID, "error", err)
		return nil, err
	}
	logger.Debug("post_saved", "post", saved.ID, "version", saved.Version, "status", saved.Status)
	return saved, nil
}

// UpdatePost runs a read -> transform -> compare-and-swap cycle for the
// given post, retrying on version conflicts. The mutate func receives a
// private copy and must not retain it.
func UpdatePost(id string, mutate func(*models.ThoughtPost) error) (*models.ThoughtPost, error) {
	const maxAttempts = 5
	for attempt := 0; ; attempt++ {
		cur, err := GetPost(id)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		if err := mutate(next); err != nil {
			return nil, err
		}
		saved, err := SavePost(next)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt+1 >= maxAttempts {
			return nil, err
		}
		logger.Warn("post_update_conflict_retry", "post", id, "attempt", attempt+1)
	}
}

func getPostLocked(id string) (*models.ThoughtPost, error) {
	v, closer, err := db.Get(postKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	defer closer.Close()
	var p models.ThoughtPost
	if err := json.Unmarshal(v, &p); err != nil {
		return nil, fmt.Errorf("invalid post JSON for %s: %w", id, err)
	}
	return &p, nil
}

// GetPost returns the stored post or ErrNotFound.
func GetPost(id string) (*models.ThoughtPost, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	return getPostLocked(id)
}

// DeletePost removes the post document. History entries are intentionally
// left in place.
func DeletePost(id string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, err := getPostLocked(id); err != nil {
		return err
	}
	if err := db.Delete(postKey(id), pebble.Sync); err != nil {
		logger.Error("delete_post_failed", "post", id, "error", err)
		return err
	}
	logger.Info("post_deleted", "post", id)
	return nil
}

// listPosts scans every post and keeps those matching filter (nil keeps all).
func listPosts(filter func(*models.ThoughtPost) bool) ([]*models.ThoughtPost, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("post:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*models.ThoughtPost
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		var p models.ThoughtPost
		if err := json.Unmarshal(v, &p); err != nil {
			logger.Error("list_posts_invalid_json", "key", string(iter.Key()), "error", err)
			continue
		}
		if filter == nil || filter(&p) {
			out = append(out, &p)
		}
	}
	return out, iter.Error()
}

// ListPosts returns every stored post.
func ListPosts() ([]*models.ThoughtPost, error) {
	return listPosts(nil)
}

// ListPostsByStatus returns posts whose status matches any of the given
// statuses.
func ListPostsByStatus(statuses ...models.Status) ([]*models.ThoughtPost, error) {
	set := make(map[models.Status]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return listPosts(func(p *models.ThoughtPost) bool {
		_, ok := set[p.Status]
		return ok
	})
}

// ListPostsByUser returns every post owned by userID.
func ListPostsByUser(userID string) ([]*models.ThoughtPost, error) {
	return listPosts(func(p *models.ThoughtPost) bool { return p.UserID == userID })
}

// ListPostsByUserAndStatus filters by owner and lifecycle status.
func ListPostsByUserAndStatus(userID string, status models.Status) ([]*models.ThoughtPost, error) {
	return listPosts(func(p *models.ThoughtPost) bool {
		return p.UserID == userID && p.Status == status
	})
}

// ListPostsByUserAndStatusNot filters by owner, excluding one status.
func ListPostsByUserAndStatusNot(userID string, status models.Status) ([]*models.ThoughtPost, error) {
	return listPosts(func(p *models.ThoughtPost) bool {
		return p.UserID == userID && p.Status != status
	})
}

// ListPostsByUserAndPlatform filters by owner and targeted platform.
func ListPostsByUserAndPlatform(userID string, platform models.Platform) ([]*models.ThoughtPost, error) {
	return listPosts(func(p *models.ThoughtPost) bool {
		if p.UserID != userID {
			return false
		}
		for _, pl := range p.SelectedPlatforms {
			if pl == platform {
				return true
			}
		}
		return false
	})
}

// AppendHistory writes an immutable history entry. Entries are keyed by
// timestamp so they sort chronologically and survive post deletion.
func AppendHistory(entry models.HistoryEntry) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if entry.PostID == "" {
		return fmt.Errorf("history entry post id is required")
	}
	if entry.ID == "" {
		entry.ID = utils.GenID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	ts := entry.CreatedAt.UnixNano()
	s := atomic.AddUint64(&seq, 1)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	if err := db.Set(histKey(entry.PostID, ts, s), data, pebble.Sync); err != nil {
		logger.Error("append_history_failed", "post", entry.PostID, "error", err)
		return err
	}
	logger.Debug("history_appended", "post", entry.PostID, "action", entry.ActionType, "version", entry.Version)
	return nil
}

// ListHistory returns history entries for a post, newest first. Works even
// after the post itself was deleted.
func ListHistory(postID string) ([]models.HistoryEntry, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("posthist:" + postID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.HistoryEntry
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		var e models.HistoryEntry
		if err := json.Unmarshal(v, &e); err != nil {
			logger.Error("list_history_invalid_json", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, e)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	// reverse to newest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
