package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/memohai/tglistener/internal/platform"
)

const (
	// TTL is how long a resolved user entity stays cached.
	TTL = 30 * time.Hour
	// DialogScanLimit is how many recent dialogs a cache miss scans.
	DialogScanLimit = 100

	keyPrefix      = "dialog:"
	defaultTimeout = 3 * time.Second
)

// Lister lists a session's most recent dialogs.
type Lister interface {
	Dialogs(ctx context.Context, limit int) ([]platform.Entity, error)
}

// Cache resolves participant ids to user entities through Redis.
type Cache struct {
	rdb     redis.Cmdable
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewCache creates a dialog cache backed by rdb. A non-positive timeout uses
// the default per-call timeout.
func NewCache(log *slog.Logger, rdb redis.Cmdable, timeout time.Duration) *Cache {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Cache{
		rdb:     rdb,
		timeout: timeout,
		now:     time.Now,
		logger:  log.With(slog.String("component", "dialog_cache")),
	}
}

// Key returns the cache key for a participant.
func Key(id platform.ID) string {
	return keyPrefix + id.String()
}

// Resolve returns the user entity for participantID. Cache read and write
// failures degrade to a dialog scan; only a failed scan is returned as an error.
func (c *Cache) Resolve(ctx context.Context, lister Lister, participantID platform.ID) (*platform.Entity, error) {
	key := Key(participantID)
	log := c.logger.With(slog.String("key", key))

	if entity, ok := c.get(ctx, key, log); ok {
		return entity, nil
	}

	dialogs, err := lister.Dialogs(ctx, DialogScanLimit)
	if err != nil {
		return nil, fmt.Errorf("list dialogs: %w", err)
	}
	var found *platform.Entity
	for i := range dialogs {
		if dialogs[i].ID.Equal(participantID) {
			found = &dialogs[i]
			break
		}
	}
	if found == nil || !found.IsUser() {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, participantID)
	}
	entity := *found
	if entity.ResolvedAt.IsZero() {
		entity.ResolvedAt = c.now().UTC()
	}
	c.set(ctx, key, entity, log)
	return &entity, nil
}

func (c *Cache) get(ctx context.Context, key string, log *slog.Logger) (*platform.Entity, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn("dialog cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	var entity platform.Entity
	if err := json.Unmarshal(raw, &entity); err != nil {
		log.Warn("dialog cache entry is corrupt", slog.Any("error", err))
		return nil, false
	}
	if !entity.IsUser() {
		return nil, false
	}
	return &entity, true
}

func (c *Cache) set(ctx context.Context, key string, entity platform.Entity, log *slog.Logger) {
	payload, err := json.Marshal(entity)
	if err != nil {
		log.Warn("dialog cache encode failed", slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.rdb.Set(ctx, key, payload, TTL).Err(); err != nil {
		log.Warn("dialog cache write failed", slog.Any("error", err))
	}
}
