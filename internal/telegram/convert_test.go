package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/tglistener/internal/platform"
)

func TestConvertUpdateNewMessageWithDocument(t *testing.T) {
	t.Parallel()

	msg := &tg.Message{
		ID:      77,
		Out:     true,
		PeerID:  &tg.PeerChannel{ChannelID: 500},
		Message: "look",
		Date:    1700000000,
	}
	msg.Media = &tg.MessageMediaDocument{Document: &tg.Document{
		ID:            1,
		AccessHash:    2,
		FileReference: []byte{9},
		MimeType:      "video/mp4",
		Size:          1024,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeVideo{RoundMessage: true},
			&tg.DocumentAttributeFilename{FileName: "clip.mp4"},
			&tg.DocumentAttributeImageSize{W: 1, H: 1},
		},
	}}

	upd := convertUpdate(&tg.UpdateNewChannelMessage{Message: msg})
	nm, ok := upd.(*platform.NewMessage)
	require.True(t, ok)
	assert.True(t, nm.Channel)
	assert.True(t, nm.Message.Out)
	assert.Equal(t, 77, nm.Message.ID)
	assert.Equal(t, "look", nm.Message.Text)
	assert.Equal(t, platform.KindChannel, nm.Message.Peer.Kind)
	assert.True(t, nm.Message.Peer.ID.Equal(platform.NewID(500)))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), nm.Message.Date)

	doc, ok := nm.Message.Media.(*platform.Document)
	require.True(t, ok)
	assert.Equal(t, "video/mp4", doc.MimeType)
	assert.Equal(t, int64(1024), doc.Size)
	assert.Equal(t, []platform.DocumentAttribute{
		platform.VideoAttribute{Round: true},
		platform.FilenameAttribute{Name: "clip.mp4"},
	}, doc.Attributes)
}

func TestConvertUpdateIgnoresServiceMessages(t *testing.T) {
	t.Parallel()

	upd := convertUpdate(&tg.UpdateNewMessage{Message: &tg.MessageService{ID: 1}})
	other, ok := upd.(*platform.OtherUpdate)
	require.True(t, ok)
	assert.Equal(t, "updateNewMessage", other.Kind)

	upd = convertUpdate(&tg.UpdateUserTyping{UserID: 1, Action: &tg.SendMessageTypingAction{}})
	_, ok = upd.(*platform.OtherUpdate)
	assert.True(t, ok)
}

func TestConvertShortMessage(t *testing.T) {
	t.Parallel()

	sm := convertShortMessage(&tg.UpdateShortMessage{Out: true, ID: 5, UserID: 42, Message: "hey", Date: 10})
	assert.True(t, sm.Out)
	assert.Equal(t, 5, sm.ID)
	assert.True(t, sm.UserID.Equal(platform.NewID(42)))
	assert.Equal(t, "hey", sm.Text)
}

func TestConvertMediaPhotoPicksLargestSize(t *testing.T) {
	t.Parallel()

	media := convertMedia(&tg.MessageMediaPhoto{Photo: &tg.Photo{
		ID:         3,
		AccessHash: 4,
		Sizes: []tg.PhotoSizeClass{
			&tg.PhotoStrippedSize{Type: "i"},
			&tg.PhotoSize{Type: "m", W: 320, H: 240},
			&tg.PhotoSizeProgressive{Type: "y", W: 1280, H: 960, Sizes: []int{100, 200}},
			&tg.PhotoSize{Type: "x", W: 800, H: 600},
		},
	}})
	photo, ok := media.(*platform.Photo)
	require.True(t, ok)
	assert.Equal(t, "y", photo.ThumbSize)
	assert.Equal(t, int64(3), photo.ID)
}

func TestConvertMediaUnsupported(t *testing.T) {
	t.Parallel()

	media := convertMedia(&tg.MessageMediaGeo{Geo: &tg.GeoPointEmpty{}})
	u, ok := media.(*platform.UnsupportedMedia)
	require.True(t, ok)
	assert.Equal(t, "messageMediaGeo", u.Kind)

	assert.Nil(t, convertMedia(&tg.MessageMediaEmpty{}))
}

func TestChatEntity(t *testing.T) {
	t.Parallel()

	e, ok := chatEntity(&tg.Channel{ID: 9, AccessHash: 99, Title: "News", Username: "news"})
	require.True(t, ok)
	assert.Equal(t, platform.KindChannel, e.Kind)
	assert.Equal(t, int64(99), e.AccessHash)
	assert.Equal(t, "News", e.Title)

	e, ok = chatEntity(&tg.Chat{ID: 10, Title: "Team"})
	require.True(t, ok)
	assert.Equal(t, platform.KindChat, e.Kind)

	_, ok = chatEntity(&tg.ChatEmpty{ID: 11})
	assert.False(t, ok)
}

func TestDialogEntitiesKeepsDialogOrder(t *testing.T) {
	t.Parallel()

	cache := newPeerCache()
	known := cache.remember(
		[]tg.UserClass{&tg.User{ID: 1, FirstName: "Ann", Username: "ann"}, &tg.UserEmpty{ID: 3}},
		[]tg.ChatClass{&tg.Chat{ID: 2, Title: "Team"}},
	)
	got := dialogEntities([]tg.DialogClass{
		&tg.Dialog{Peer: &tg.PeerChat{ChatID: 2}},
		&tg.Dialog{Peer: &tg.PeerUser{UserID: 1}},
		&tg.Dialog{Peer: &tg.PeerUser{UserID: 3}},
	}, known)

	require.Len(t, got, 2)
	assert.Equal(t, "Team", got[0].Title)
	assert.Equal(t, "ann", got[1].Username)

	e, ok := cache.get(platform.Peer{Kind: platform.KindUser, ID: platform.NewID(1)})
	require.True(t, ok)
	assert.False(t, e.ResolvedAt.IsZero())
}

func TestTokenStorageRoundTrip(t *testing.T) {
	t.Parallel()

	empty, err := newTokenStorage("")
	require.NoError(t, err)
	_, err = empty.LoadSession(context.Background())
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, "", empty.Token())

	require.NoError(t, empty.StoreSession(context.Background(), []byte(`{"Version":1}`)))
	restored, err := newTokenStorage(empty.Token())
	require.NoError(t, err)
	data, err := restored.LoadSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"Version":1}`, string(data))

	_, err = newTokenStorage("%%%not-base64")
	assert.Error(t, err)
}
