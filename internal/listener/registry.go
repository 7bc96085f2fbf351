package listener

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/memohai/tglistener/internal/platform"
	"github.com/memohai/tglistener/internal/session"
)

const defaultStopTimeout = 30 * time.Second

// SessionConfig describes one account to listen on.
type SessionConfig struct {
	APIID        int64
	APIHash      string
	Phone        string
	SessionToken string
	// TwoFactorPassword answers the two-step challenge for this start; the
	// login code still comes from the registry's prompter.
	TwoFactorPassword string
}

// Store persists session records.
type Store interface {
	Upsert(ctx context.Context, rec session.Record) (session.Record, error)
	Delete(ctx context.Context, apiID int64) error
	ListByActive(ctx context.Context, active bool) ([]session.Record, error)
	SetActive(ctx context.Context, apiIDs []int64, active bool) (int64, error)
	UpdateToken(ctx context.Context, apiID int64, token string) error
}

// Options tunes the registry.
type Options struct {
	// Limit caps live sessions; 0 means unlimited.
	Limit     int
	QueueSize int
	Workers   int
}

type sessionEntry struct {
	conn       platform.Connection
	dispatcher *Dispatcher
	startedAt  time.Time
	// savedToken is the last session token written to the store.
	savedToken string
}

// SessionStatus is the runtime state of one registered session.
type SessionStatus struct {
	APIID     int64     `json:"apiId"`
	Running   bool      `json:"running"`
	LastError string    `json:"lastError,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Registry owns the live sessions of this process.
type Registry struct {
	connector platform.Connector
	store     Store
	pipeline  Pipeline
	prompter  platform.Prompter
	opts      Options
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*sessionEntry
	starting map[int64]struct{}
	closed   bool
}

// NewRegistry creates a registry. prompter answers interactive login
// challenges for sessions that do not bring their own.
func NewRegistry(log *slog.Logger, connector platform.Connector, store Store, pipeline Pipeline, prompter platform.Prompter, opts Options) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		connector: connector,
		store:     store,
		pipeline:  pipeline,
		prompter:  prompter,
		opts:      opts,
		logger:    log.With(slog.String("component", "listener")),
		sessions:  map[int64]*sessionEntry{},
		starting:  map[int64]struct{}{},
	}
}

// Add connects cfg, persists it as active and starts forwarding its
// outgoing messages. It returns the api id.
func (r *Registry) Add(ctx context.Context, cfg SessionConfig) (int64, error) {
	if err := validateConfig(cfg); err != nil {
		return 0, err
	}
	if err := r.reserve(cfg.APIID); err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			r.release(cfg.APIID)
		}
	}()

	log := r.logger.With(slog.Int64("api_id", cfg.APIID))
	prompter := r.prompter
	if cfg.TwoFactorPassword != "" {
		prompter = passwordPrompter{next: r.prompter, password: cfg.TwoFactorPassword}
	}

	dispatcher := NewDispatcher(r.logger, cfg.APIID, r.pipeline, r.opts.QueueSize, r.opts.Workers)
	conn, err := r.connector.Connect(ctx, platform.Credentials{
		APIID:        cfg.APIID,
		APIHash:      cfg.APIHash,
		Phone:        cfg.Phone,
		SessionToken: cfg.SessionToken,
	}, prompter, dispatcher.Submit)
	if err != nil {
		_ = dispatcher.Stop(context.Background())
		log.Error("session connect failed", slog.Any("error", err))
		return 0, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	self := conn.Self()
	token := conn.SessionToken()
	if _, err := r.store.Upsert(ctx, session.Record{
		APIID:        cfg.APIID,
		APIHash:      cfg.APIHash,
		Phone:        cfg.Phone,
		SessionToken: token,
		Username:     self.Username,
		FirstName:    self.FirstName,
		LastName:     self.LastName,
		Active:       true,
	}); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
		defer cancel()
		_ = dispatcher.Stop(stopCtx)
		if stopErr := conn.Stop(stopCtx); stopErr != nil {
			log.Warn("connection stop failed", slog.Any("error", stopErr))
		}
		return 0, fmt.Errorf("persist session: %w", err)
	}
	log.Debug("session token", slog.String("session_token", token))

	dispatcher.Start(conn)
	entry := &sessionEntry{conn: conn, dispatcher: dispatcher, startedAt: time.Now(), savedToken: token}
	r.mu.Lock()
	delete(r.starting, cfg.APIID)
	closed := r.closed
	if !closed {
		r.sessions[cfg.APIID] = entry
	}
	r.mu.Unlock()
	committed = true
	if closed {
		stopCtx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
		defer cancel()
		r.stopEntry(stopCtx, cfg.APIID, entry)
		if _, err := r.store.SetActive(stopCtx, []int64{cfg.APIID}, false); err != nil {
			log.Warn("flag session inactive failed", slog.Any("error", err))
		}
		return 0, ErrRegistryClosed
	}

	go r.watch(cfg.APIID, entry)
	log.Info("listening", slog.String("username", self.Username), slog.String("name", self.FullName()))
	return cfg.APIID, nil
}

// watch logs a connection that ends while its session is still registered.
// The entry stays listed so health checks report it until it is stopped.
func (r *Registry) watch(apiID int64, entry *sessionEntry) {
	<-entry.conn.Done()
	r.mu.Lock()
	live := r.sessions[apiID] == entry
	r.mu.Unlock()
	if !live {
		return
	}
	r.logger.Error("session connection lost",
		slog.Int64("api_id", apiID),
		slog.Any("error", entry.conn.Err()),
	)
}

// Stop disconnects apiID and deletes its persisted record.
func (r *Registry) Stop(ctx context.Context, apiID int64) error {
	r.mu.Lock()
	entry, ok := r.sessions[apiID]
	if ok {
		delete(r.sessions, apiID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	log := r.logger.With(slog.Int64("api_id", apiID))
	r.stopEntry(ctx, apiID, entry)
	if err := r.store.Delete(ctx, apiID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			log.Warn("session record already gone")
			return nil
		}
		return err
	}
	log.Info("listener stopped")
	return nil
}

// List returns the live api ids in ascending order.
func (r *Registry) List() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Statuses reports every registered session in ascending api id order.
func (r *Registry) Statuses() []SessionStatus {
	r.mu.Lock()
	items := make([]SessionStatus, 0, len(r.sessions))
	for id, entry := range r.sessions {
		items = append(items, entryStatus(id, entry))
	}
	r.mu.Unlock()
	slices.SortFunc(items, func(a, b SessionStatus) int { return cmp.Compare(a.APIID, b.APIID) })
	return items
}

func entryStatus(apiID int64, entry *sessionEntry) SessionStatus {
	status := SessionStatus{APIID: apiID, Running: true, StartedAt: entry.startedAt}
	select {
	case <-entry.conn.Done():
		status.Running = false
		if err := entry.conn.Err(); err != nil {
			status.LastError = err.Error()
		} else {
			status.LastError = "connection closed"
		}
	default:
	}
	return status
}

// Restore starts every persisted session flagged inactive. Shutdown flags
// live sessions inactive, so these are the ones that ran before the restart.
// Failures are logged per session.
func (r *Registry) Restore(ctx context.Context) {
	records, err := r.store.ListByActive(ctx, false)
	if err != nil {
		r.logger.Error("restore sessions failed", slog.Any("error", err))
		return
	}
	restored := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}
		_, err := r.Add(ctx, SessionConfig{
			APIID:        rec.APIID,
			APIHash:      rec.APIHash,
			Phone:        rec.Phone,
			SessionToken: rec.SessionToken,
		})
		if err != nil {
			r.logger.Error("restore session failed", slog.Int64("api_id", rec.APIID), slog.Any("error", err))
			continue
		}
		restored++
	}
	r.logger.Info("sessions restored", slog.Int("restored", restored), slog.Int("found", len(records)))
}

// SyncTokens writes back session tokens the platform refreshed since they
// were last saved. It returns the number of records updated.
func (r *Registry) SyncTokens(ctx context.Context) int {
	type pending struct {
		id    int64
		entry *sessionEntry
		token string
	}
	r.mu.Lock()
	var changed []pending
	for id, entry := range r.sessions {
		if token := entry.conn.SessionToken(); token != "" && token != entry.savedToken {
			changed = append(changed, pending{id: id, entry: entry, token: token})
		}
	}
	r.mu.Unlock()

	updated := 0
	for _, p := range changed {
		if err := r.store.UpdateToken(ctx, p.id, p.token); err != nil {
			r.logger.Warn("session token sync failed", slog.Int64("api_id", p.id), slog.Any("error", err))
			continue
		}
		r.mu.Lock()
		p.entry.savedToken = p.token
		r.mu.Unlock()
		updated++
	}
	if updated > 0 {
		r.logger.Info("session tokens synced", slog.Int("updated", updated))
	}
	return updated
}

// Shutdown flags live sessions inactive, then stops them. Records are kept
// and the registry accepts no further sessions.
func (r *Registry) Shutdown(ctx context.Context) {
	r.SyncTokens(ctx)
	r.mu.Lock()
	r.closed = true
	entries := r.sessions
	r.sessions = map[int64]*sessionEntry{}
	r.mu.Unlock()

	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		if _, err := r.store.SetActive(ctx, ids, false); err != nil {
			r.logger.Warn("flag sessions inactive failed", slog.Any("error", err))
		}
	}

	var wg sync.WaitGroup
	for id, entry := range entries {
		wg.Add(1)
		go func(id int64, entry *sessionEntry) {
			defer wg.Done()
			r.stopEntry(ctx, id, entry)
		}(id, entry)
	}
	wg.Wait()
	r.logger.Info("listeners shut down", slog.Int("sessions", len(ids)))
}

func (r *Registry) stopEntry(ctx context.Context, apiID int64, entry *sessionEntry) {
	log := r.logger.With(slog.Int64("api_id", apiID))
	if err := entry.dispatcher.Stop(ctx); err != nil {
		log.Warn("dispatcher drain interrupted", slog.Any("error", err))
	}
	if err := entry.conn.Stop(ctx); err != nil {
		log.Warn("connection stop failed", slog.Any("error", err))
	}
}

func (r *Registry) reserve(apiID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	if _, ok := r.sessions[apiID]; ok {
		return ErrAlreadyListening
	}
	if _, ok := r.starting[apiID]; ok {
		return ErrAlreadyListening
	}
	if r.opts.Limit > 0 && len(r.sessions)+len(r.starting) >= r.opts.Limit {
		return ErrCapacityExceeded
	}
	r.starting[apiID] = struct{}{}
	return nil
}

func (r *Registry) release(apiID int64) {
	r.mu.Lock()
	delete(r.starting, apiID)
	r.mu.Unlock()
}

func validateConfig(cfg SessionConfig) error {
	switch {
	case cfg.APIID <= 0:
		return fmt.Errorf("%w: api id must be positive", ErrInvalidConfig)
	case strings.TrimSpace(cfg.APIHash) == "":
		return fmt.Errorf("%w: api hash is required", ErrInvalidConfig)
	case strings.TrimSpace(cfg.Phone) == "" && cfg.SessionToken == "":
		return fmt.Errorf("%w: phone or session token is required", ErrInvalidConfig)
	}
	return nil
}
