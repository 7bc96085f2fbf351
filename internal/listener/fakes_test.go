package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/memohai/tglistener/internal/broker"
	"github.com/memohai/tglistener/internal/media"
	"github.com/memohai/tglistener/internal/platform"
	"github.com/memohai/tglistener/internal/session"
)

type fakeConn struct {
	self        platform.Entity
	token       string
	ResolveFunc func(ctx context.Context, peer platform.Peer) (platform.Entity, error)
	DialogsFunc func(ctx context.Context, limit int) ([]platform.Entity, error)

	// DownloadFunc and RefetchFunc default to failing.
	DownloadFunc func(ctx context.Context, m platform.Media, w io.Writer) error
	RefetchFunc  func(ctx context.Context, peer platform.Peer, id int) (platform.Message, error)

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
	runErr  error
}

func (c *fakeConn) Self() platform.Entity { return c.self }

func (c *fakeConn) ResolvePeer(ctx context.Context, peer platform.Peer) (platform.Entity, error) {
	if c.ResolveFunc == nil {
		return platform.Entity{}, platform.ErrPeerNotFound
	}
	return c.ResolveFunc(ctx, peer)
}

func (c *fakeConn) Download(ctx context.Context, m platform.Media, w io.Writer) error {
	if c.DownloadFunc == nil {
		return errors.New("not implemented")
	}
	return c.DownloadFunc(ctx, m, w)
}

func (c *fakeConn) RefetchMessage(ctx context.Context, peer platform.Peer, id int) (platform.Message, error) {
	if c.RefetchFunc == nil {
		return platform.Message{}, errors.New("not implemented")
	}
	return c.RefetchFunc(ctx, peer, id)
}

func (c *fakeConn) Dialogs(ctx context.Context, limit int) ([]platform.Entity, error) {
	if c.DialogsFunc == nil {
		return nil, nil
	}
	return c.DialogsFunc(ctx, limit)
}

func (c *fakeConn) SessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *fakeConn) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *fakeConn) doneLocked() chan struct{} {
	if c.done == nil {
		c.done = make(chan struct{})
	}
	return c.done
}

func (c *fakeConn) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doneLocked()
}

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// exit ends the run loop the way a revoked session does.
func (c *fakeConn) exit(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.runErr = err
	close(c.doneLocked())
}

func (c *fakeConn) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.doneLocked())
	}
	return nil
}

func (c *fakeConn) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// fakeConnector hands out conns by api id and keeps the update handler so
// tests can push updates.
type fakeConnector struct {
	ConnectFunc func(ctx context.Context, creds platform.Credentials, prompter platform.Prompter) (*fakeConn, error)

	mu        sync.Mutex
	handlers  map[int64]platform.UpdateHandler
	prompters map[int64]platform.Prompter
	conns     map[int64]*fakeConn
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		handlers:  map[int64]platform.UpdateHandler{},
		prompters: map[int64]platform.Prompter{},
		conns:     map[int64]*fakeConn{},
	}
}

func (c *fakeConnector) Connect(ctx context.Context, creds platform.Credentials, prompter platform.Prompter, handler platform.UpdateHandler) (platform.Connection, error) {
	var conn *fakeConn
	if c.ConnectFunc != nil {
		var err error
		conn, err = c.ConnectFunc(ctx, creds, prompter)
		if err != nil {
			return nil, err
		}
	} else {
		conn = &fakeConn{
			self:  platform.Entity{ID: platform.NewID(creds.APIID * 10), Kind: platform.KindUser, FirstName: "Owner"},
			token: "fresh-" + creds.Phone,
		}
	}
	c.mu.Lock()
	c.handlers[creds.APIID] = handler
	c.prompters[creds.APIID] = prompter
	c.conns[creds.APIID] = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *fakeConnector) push(apiID int64, upd platform.Update) {
	c.mu.Lock()
	h := c.handlers[apiID]
	c.mu.Unlock()
	h(context.Background(), upd)
}

func (c *fakeConnector) conn(apiID int64) *fakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[apiID]
}

func (c *fakeConnector) prompter(apiID int64) platform.Prompter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompters[apiID]
}

type fakeStore struct {
	ListFunc func(ctx context.Context, active bool) ([]session.Record, error)

	mu      sync.Mutex
	records map[int64]session.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[int64]session.Record{}}
}

func (s *fakeStore) Upsert(_ context.Context, rec session.Record) (session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.APIID] = rec
	return rec, nil
}

func (s *fakeStore) Delete(_ context.Context, apiID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[apiID]; !ok {
		return session.ErrNotFound
	}
	delete(s.records, apiID)
	return nil
}

func (s *fakeStore) ListByActive(ctx context.Context, active bool) ([]session.Record, error) {
	if s.ListFunc != nil {
		return s.ListFunc(ctx, active)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []session.Record
	for _, rec := range s.records {
		if rec.Active == active {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) SetActive(_ context.Context, apiIDs []int64, active bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range apiIDs {
		if rec, ok := s.records[id]; ok {
			rec.Active = active
			s.records[id] = rec
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) UpdateToken(_ context.Context, apiID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[apiID]
	if !ok {
		return session.ErrNotFound
	}
	rec.SessionToken = token
	s.records[apiID] = rec
	return nil
}

func (s *fakeStore) get(apiID int64) (session.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[apiID]
	return rec, ok
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []broker.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg broker.Message) error {
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) published() []broker.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]broker.Message(nil), p.messages...)
}

// staticPrompter answers with fixed values.
type staticPrompter struct {
	code     string
	password string
}

func (p staticPrompter) Code(_ context.Context, phone string) (string, error) {
	if p.code == "" {
		return "", fmt.Errorf("login code required for %s", phone)
	}
	return p.code, nil
}

func (p staticPrompter) Password(_ context.Context, phone string) (string, error) {
	if p.password == "" {
		return "", fmt.Errorf("two-step password required for %s", phone)
	}
	return p.password, nil
}

// fakeMediaStore records uploads and serves them under cdn.example.
type fakeMediaStore struct {
	mu    sync.Mutex
	files []string
}

func (s *fakeMediaStore) Upload(_ context.Context, filename string, _ []byte) (media.UploadResponse, error) {
	s.mu.Lock()
	s.files = append(s.files, filename)
	s.mu.Unlock()
	return media.UploadResponse{FileURL: "https://cdn.example/clip", Filename: filename}, nil
}

func (s *fakeMediaStore) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}
