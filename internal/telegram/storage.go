package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/session"
)

// tokenStorage keeps the MTProto session in memory and exposes it as an
// opaque base64 token for persistence.
type tokenStorage struct {
	mu   sync.Mutex
	data []byte
}

func newTokenStorage(token string) (*tokenStorage, error) {
	s := &tokenStorage{}
	token = strings.TrimSpace(token)
	if token == "" {
		return s, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode session token: %w", err)
	}
	s.data = data
	return s, nil
}

func (s *tokenStorage) LoadSession(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (s *tokenStorage) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}

// Token returns the current session as a base64 string, or "" before the
// first store.
func (s *tokenStorage) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(s.data)
}
