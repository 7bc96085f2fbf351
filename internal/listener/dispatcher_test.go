package listener

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/tglistener/internal/dialog"
	"github.com/memohai/tglistener/internal/forward"
	"github.com/memohai/tglistener/internal/media"
	"github.com/memohai/tglistener/internal/platform"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		upd  platform.Update
		want eventKind
	}{
		{name: "outgoing short", upd: &platform.ShortMessage{Out: true}, want: eventShort},
		{name: "incoming short", upd: &platform.ShortMessage{}, want: eventIgnored},
		{name: "outgoing new message", upd: &platform.NewMessage{Message: platform.Message{Out: true}}, want: eventFull},
		{name: "outgoing channel message", upd: &platform.NewMessage{Channel: true, Message: platform.Message{Out: true}}, want: eventFull},
		{name: "incoming new message", upd: &platform.NewMessage{}, want: eventIgnored},
		{name: "other", upd: &platform.OtherUpdate{Kind: "updateReadHistoryInbox"}, want: eventIgnored},
		{name: "nil", upd: nil, want: eventIgnored},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, classify(tc.upd))
		})
	}
}

type fakeResolver struct {
	ResolveFunc func(ctx context.Context, lister dialog.Lister, id platform.ID) (*platform.Entity, error)
}

func (r fakeResolver) Resolve(ctx context.Context, lister dialog.Lister, id platform.ID) (*platform.Entity, error) {
	return r.ResolveFunc(ctx, lister, id)
}

type fakeExtractor struct {
	ExtractFunc func(ctx context.Context, src media.Source, msg platform.Message) *media.Uploaded
}

func (e fakeExtractor) Extract(ctx context.Context, src media.Source, msg platform.Message) *media.Uploaded {
	return e.ExtractFunc(ctx, src, msg)
}

type fakeEmitter struct {
	mu        sync.Mutex
	envelopes []forward.Envelope
}

func (e *fakeEmitter) Emit(env forward.Envelope) {
	e.mu.Lock()
	e.envelopes = append(e.envelopes, env)
	e.mu.Unlock()
}

func (e *fakeEmitter) emitted() []forward.Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]forward.Envelope(nil), e.envelopes...)
}

func stopDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherAttachesMedia(t *testing.T) {
	t.Parallel()

	emitter := &fakeEmitter{}
	asset := &media.Uploaded{ContentType: media.ContentTypePhoto, FileURL: "https://cdn.local/a.jpg"}
	d := NewDispatcher(nil, 9, Pipeline{
		Media: fakeExtractor{ExtractFunc: func(context.Context, media.Source, platform.Message) *media.Uploaded {
			return asset
		}},
		Emitter: emitter,
	}, 4, 1)
	conn := &fakeConn{
		self: platform.Entity{ID: platform.NewID(1), Kind: platform.KindUser},
		ResolveFunc: func(_ context.Context, peer platform.Peer) (platform.Entity, error) {
			return platform.Entity{ID: peer.ID, Kind: platform.KindUser, FirstName: "Ann"}, nil
		},
	}
	d.Start(conn)

	sentAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d.Submit(context.Background(), &platform.NewMessage{Message: platform.Message{
		ID:    7,
		Out:   true,
		Peer:  platform.Peer{Kind: platform.KindUser, ID: platform.NewID(2)},
		Text:  "look",
		Date:  sentAt,
		Media: &platform.Photo{ID: 1},
	}})
	stopDispatcher(t, d)

	got := emitter.emitted()
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].APIID)
	assert.Same(t, asset, got[0].Media)
	assert.Equal(t, "Ann", got[0].To.FirstName)
	assert.Equal(t, sentAt, got[0].SentAt)
}

func TestDispatcherSkipsUnresolvedShortMessage(t *testing.T) {
	t.Parallel()

	emitter := &fakeEmitter{}
	d := NewDispatcher(nil, 9, Pipeline{
		Resolver: fakeResolver{ResolveFunc: func(context.Context, dialog.Lister, platform.ID) (*platform.Entity, error) {
			return nil, dialog.ErrEntityNotFound
		}},
		Emitter: emitter,
	}, 4, 1)
	d.Start(&fakeConn{})
	d.Submit(context.Background(), &platform.ShortMessage{Out: true, UserID: platform.NewID(3), Text: "x"})
	stopDispatcher(t, d)

	assert.Empty(t, emitter.emitted())
}

func TestDispatcherQueuesUntilStartAndDropsAfterStop(t *testing.T) {
	t.Parallel()

	emitter := &fakeEmitter{}
	d := NewDispatcher(nil, 9, Pipeline{
		Resolver: fakeResolver{ResolveFunc: func(_ context.Context, _ dialog.Lister, id platform.ID) (*platform.Entity, error) {
			return &platform.Entity{ID: id, Kind: platform.KindUser}, nil
		}},
		Emitter: emitter,
	}, 4, 2)

	d.Submit(context.Background(), &platform.ShortMessage{ID: 1, Out: true, UserID: platform.NewID(3)})
	d.Submit(context.Background(), &platform.ShortMessage{ID: 2, Out: true, UserID: platform.NewID(3)})
	d.Start(&fakeConn{})
	stopDispatcher(t, d)
	assert.Len(t, emitter.emitted(), 2)

	d.Submit(context.Background(), &platform.ShortMessage{ID: 3, Out: true, UserID: platform.NewID(3)})
	assert.Len(t, emitter.emitted(), 2)
}

func TestDispatcherSurvivesPanics(t *testing.T) {
	t.Parallel()

	emitter := &fakeEmitter{}
	calls := 0
	d := NewDispatcher(nil, 9, Pipeline{
		Resolver: fakeResolver{ResolveFunc: func(_ context.Context, _ dialog.Lister, id platform.ID) (*platform.Entity, error) {
			calls++
			if calls == 1 {
				panic("bad update")
			}
			return &platform.Entity{ID: id, Kind: platform.KindUser}, nil
		}},
		Emitter: emitter,
	}, 4, 1)
	d.Start(&fakeConn{})
	d.Submit(context.Background(), &platform.ShortMessage{ID: 1, Out: true, UserID: platform.NewID(3)})
	d.Submit(context.Background(), &platform.ShortMessage{ID: 2, Out: true, UserID: platform.NewID(3)})
	stopDispatcher(t, d)

	assert.Len(t, emitter.emitted(), 1)
}

func TestPasswordPrompterWithoutFallback(t *testing.T) {
	t.Parallel()

	p := passwordPrompter{password: "pw"}
	_, err := p.Code(context.Background(), "+1")
	assert.Error(t, err)

	pw, err := p.Password(context.Background(), "+1")
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)
}
