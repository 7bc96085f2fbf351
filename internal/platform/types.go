package platform

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrPeerNotFound indicates a peer could not be resolved to an entity.
var ErrPeerNotFound = errors.New("peer not found")

// EntityKind classifies a dialog participant.
type EntityKind string

const (
	KindUser    EntityKind = "user"
	KindChat    EntityKind = "chat"
	KindChannel EntityKind = "channel"
)

// Entity is the platform-independent view of a user, group or channel.
type Entity struct {
	ID         ID         `json:"id"`
	Kind       EntityKind `json:"kind"`
	AccessHash int64      `json:"accessHash,omitempty"`
	Username   string     `json:"username,omitempty"`
	FirstName  string     `json:"firstName,omitempty"`
	LastName   string     `json:"lastName,omitempty"`
	Title      string     `json:"title,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Bot        bool       `json:"bot,omitempty"`
	ResolvedAt time.Time  `json:"resolvedAt,omitempty"`
}

// IsUser reports whether the entity is a user account (bots included).
func (e Entity) IsUser() bool {
	return e.Kind == KindUser
}

// FullName joins first and last name.
func (e Entity) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
}

// Peer references a conversation by kind and id.
type Peer struct {
	Kind EntityKind
	ID   ID
}

// Media is a closed set of attachment references: *Photo, *Document and
// *UnsupportedMedia.
type Media interface {
	media()
}

// Photo references a compressed photo.
type Photo struct {
	ID            int64
	AccessHash    int64
	FileReference []byte
	ThumbSize     string
}

// Document references any file sent as a document (video, audio, sticker, ...).
type Document struct {
	ID            int64
	AccessHash    int64
	FileReference []byte
	MimeType      string
	Size          int64
	Attributes    []DocumentAttribute
}

// UnsupportedMedia is attached media of a shape the pipeline does not extract
// (web page previews, geo points, polls, ...).
type UnsupportedMedia struct {
	Kind string
}

func (*Photo) media()            {}
func (*Document) media()         {}
func (*UnsupportedMedia) media() {}

// DocumentAttribute is a closed set of document attributes relevant to
// classification.
type DocumentAttribute interface {
	documentAttribute()
}

type (
	StickerAttribute  struct{}
	AnimatedAttribute struct{}
	// VideoAttribute marks video documents; Round is set for circular clips.
	VideoAttribute struct{ Round bool }
	// AudioAttribute marks audio documents; Voice is set for recorded voice notes.
	AudioAttribute    struct{ Voice bool }
	FilenameAttribute struct{ Name string }
)

func (StickerAttribute) documentAttribute()  {}
func (AnimatedAttribute) documentAttribute() {}
func (VideoAttribute) documentAttribute()    {}
func (AudioAttribute) documentAttribute()    {}
func (FilenameAttribute) documentAttribute() {}

// Message is a full message as embedded in new-message updates.
type Message struct {
	ID    int
	Out   bool
	Peer  Peer
	Text  string
	Date  time.Time
	Media Media
}

// Update is a closed set of raw session events: *ShortMessage, *NewMessage
// and *OtherUpdate.
type Update interface {
	update()
}

// ShortMessage is the compact private-message update. It never carries media.
type ShortMessage struct {
	ID     int
	Out    bool
	UserID ID
	Text   string
	Date   time.Time
}

// NewMessage wraps a full message from a new-message or new-channel-message update.
type NewMessage struct {
	Message Message
	Channel bool
}

// OtherUpdate is any update kind the pipeline does not process.
type OtherUpdate struct {
	Kind string
}

func (*ShortMessage) update() {}
func (*NewMessage) update()   {}
func (*OtherUpdate) update()  {}

// UpdateHandler receives raw updates from a live connection.
type UpdateHandler func(ctx context.Context, upd Update)

// Client is the live-connection surface the event pipeline depends on.
type Client interface {
	Self() Entity
	ResolvePeer(ctx context.Context, peer Peer) (Entity, error)
	Download(ctx context.Context, media Media, w io.Writer) error
	RefetchMessage(ctx context.Context, peer Peer, id int) (Message, error)
	Dialogs(ctx context.Context, limit int) ([]Entity, error)
}

// Connection is a running, authenticated session.
type Connection interface {
	Client
	// SessionToken returns the serialized session, refreshed by the platform
	// during authentication.
	SessionToken() string
	// Done is closed once the connection's run loop has exited, after Stop
	// or on its own.
	Done() <-chan struct{}
	// Err reports why the run loop exited. It is nil while running and after
	// a requested Stop.
	Err() error
	Stop(ctx context.Context) error
}

// Credentials identify one platform account.
type Credentials struct {
	APIID        int64
	APIHash      string
	Phone        string
	SessionToken string
}

// Prompter supplies interactive authentication input.
type Prompter interface {
	Code(ctx context.Context, phone string) (string, error)
	Password(ctx context.Context, phone string) (string, error)
}

// Connector opens authenticated connections.
type Connector interface {
	Connect(ctx context.Context, creds Credentials, prompter Prompter, handler UpdateHandler) (Connection, error)
}
