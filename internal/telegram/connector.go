package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/memohai/tglistener/internal/platform"
)

// Connector opens MTProto user sessions.
type Connector struct {
	logger *slog.Logger
}

// NewConnector creates a connector.
func NewConnector(log *slog.Logger) *Connector {
	if log == nil {
		log = slog.Default()
	}
	return &Connector{logger: log.With(slog.String("component", "telegram"))}
}

// Connect starts the client run loop, authenticates (prompting when the
// session token is empty or revoked) and returns once the session is live.
// Updates are passed to handler from the run loop.
func (c *Connector) Connect(ctx context.Context, creds platform.Credentials, prompter platform.Prompter, handler platform.UpdateHandler) (platform.Connection, error) {
	storage, err := newTokenStorage(creds.SessionToken)
	if err != nil {
		return nil, err
	}
	conn := &connection{
		storage:    storage,
		peers:      newPeerCache(),
		handler:    handler,
		downloader: downloader.NewDownloader(),
		logger:     c.logger.With(slog.Int64("api_id", creds.APIID)),
		done:       make(chan struct{}),
	}
	client := telegram.NewClient(int(creds.APIID), creds.APIHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  telegram.UpdateHandlerFunc(conn.onUpdates),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	conn.cancel = cancel
	ready := make(chan error, 1)
	go func() {
		defer close(conn.done)
		err := client.Run(runCtx, func(ctx context.Context) error {
			flow := auth.NewFlow(promptAuthenticator{phone: creds.Phone, prompter: prompter}, auth.SendCodeOptions{})
			if err := client.Auth().IfNecessary(ctx, flow); err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}
			self, err := client.Self(ctx)
			if err != nil {
				return fmt.Errorf("get self: %w", err)
			}
			conn.ready(client.API(), userEntity(self))
			// Any request after login makes the server start pushing updates.
			if _, err := client.API().UpdatesGetState(ctx); err != nil {
				conn.logger.Warn("updates state request failed", slog.Any("error", err))
			}
			ready <- nil
			<-ctx.Done()
			return ctx.Err()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			conn.logger.Error("telegram client stopped", slog.Any("error", err))
			conn.setErr(err)
		}
		select {
		case ready <- err:
		default:
		}
	}()

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			<-conn.done
			return nil, err
		}
		return conn, nil
	case <-ctx.Done():
		cancel()
		<-conn.done
		return nil, ctx.Err()
	}
}

// connection is a live, authenticated client.
type connection struct {
	storage    *tokenStorage
	peers      *peerCache
	handler    platform.UpdateHandler
	downloader *downloader.Downloader
	logger     *slog.Logger

	mu     sync.RWMutex
	api    *tg.Client
	self   platform.Entity
	runErr error

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func (c *connection) ready(api *tg.Client, self platform.Entity) {
	c.mu.Lock()
	c.api, c.self = api, self
	c.mu.Unlock()
	c.peers.put(self)
}

func (c *connection) client() *tg.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api
}

func (c *connection) Self() platform.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

func (c *connection) setErr(err error) {
	c.mu.Lock()
	c.runErr = err
	c.mu.Unlock()
}

func (c *connection) Done() <-chan struct{} {
	return c.done
}

func (c *connection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runErr
}

func (c *connection) SessionToken() string {
	return c.storage.Token()
}

// Stop cancels the run loop and waits for it to exit or ctx to end.
func (c *connection) Stop(ctx context.Context) error {
	c.stopOnce.Do(c.cancel)
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *connection) onUpdates(ctx context.Context, u tg.UpdatesClass) error {
	if c.handler == nil {
		return nil
	}
	switch v := u.(type) {
	case *tg.UpdateShortMessage:
		c.handler(ctx, convertShortMessage(v))
	case *tg.UpdateShort:
		c.handler(ctx, convertUpdate(v.Update))
	case *tg.Updates:
		c.peers.remember(v.Users, v.Chats)
		for _, upd := range v.Updates {
			c.handler(ctx, convertUpdate(upd))
		}
	case *tg.UpdatesCombined:
		c.peers.remember(v.Users, v.Chats)
		for _, upd := range v.Updates {
			c.handler(ctx, convertUpdate(upd))
		}
	default:
		c.handler(ctx, &platform.OtherUpdate{Kind: u.TypeName()})
	}
	return nil
}
