package telegram

import (
	"sync"
	"time"

	"github.com/gotd/td/tg"

	"github.com/memohai/tglistener/internal/platform"
)

// peerRef is a comparable peer key; platform.ID wraps a pointer and cannot
// key a map.
type peerRef struct {
	kind platform.EntityKind
	id   int64
}

// peerCache remembers entities seen in updates and API responses so peers can
// be resolved without another round trip.
type peerCache struct {
	mu       sync.RWMutex
	entities map[peerRef]platform.Entity
	now      func() time.Time
}

func newPeerCache() *peerCache {
	return &peerCache{
		entities: make(map[peerRef]platform.Entity),
		now:      time.Now,
	}
}

func refOf(p platform.Peer) (peerRef, bool) {
	id, ok := p.ID.Int64()
	if !ok {
		return peerRef{}, false
	}
	return peerRef{kind: p.Kind, id: id}, true
}

func (c *peerCache) get(p platform.Peer) (platform.Entity, bool) {
	key, ok := refOf(p)
	if !ok {
		return platform.Entity{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[key]
	return e, ok
}

func (c *peerCache) put(e platform.Entity) {
	key, ok := refOf(platform.Peer{Kind: e.Kind, ID: e.ID})
	if !ok {
		return
	}
	if e.ResolvedAt.IsZero() {
		e.ResolvedAt = c.now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities[key] = e
}

// remember stores users and chats and returns them keyed by peer.
func (c *peerCache) remember(users []tg.UserClass, chats []tg.ChatClass) map[peerRef]platform.Entity {
	seen := make(map[peerRef]platform.Entity, len(users)+len(chats))
	for _, u := range users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		e := userEntity(user)
		c.put(e)
		seen[peerRef{kind: platform.KindUser, id: user.ID}] = e
	}
	for _, ch := range chats {
		e, ok := chatEntity(ch)
		if !ok {
			continue
		}
		c.put(e)
		if ref, ok := refOf(platform.Peer{Kind: e.Kind, ID: e.ID}); ok {
			seen[ref] = e
		}
	}
	return seen
}
