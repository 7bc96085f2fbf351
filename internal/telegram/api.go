package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gotd/td/tg"

	"github.com/memohai/tglistener/internal/platform"
)

var errNotReady = errors.New("telegram client is not ready")

// ResolvePeer returns the entity behind peer from the local cache, refreshing
// it from recent dialogs on a miss.
func (c *connection) ResolvePeer(ctx context.Context, peer platform.Peer) (platform.Entity, error) {
	if e, ok := c.peers.get(peer); ok {
		return e, nil
	}
	if _, err := c.Dialogs(ctx, 100); err != nil {
		return platform.Entity{}, fmt.Errorf("resolve %s %s: %w", peer.Kind, peer.ID, err)
	}
	if e, ok := c.peers.get(peer); ok {
		return e, nil
	}
	return platform.Entity{}, fmt.Errorf("%w: %s %s", platform.ErrPeerNotFound, peer.Kind, peer.ID)
}

// Download streams the largest rendition of m into w.
func (c *connection) Download(ctx context.Context, m platform.Media, w io.Writer) error {
	api := c.client()
	if api == nil {
		return errNotReady
	}
	var loc tg.InputFileLocationClass
	switch v := m.(type) {
	case *platform.Photo:
		loc = &tg.InputPhotoFileLocation{
			ID:            v.ID,
			AccessHash:    v.AccessHash,
			FileReference: v.FileReference,
			ThumbSize:     v.ThumbSize,
		}
	case *platform.Document:
		loc = &tg.InputDocumentFileLocation{
			ID:            v.ID,
			AccessHash:    v.AccessHash,
			FileReference: v.FileReference,
		}
	default:
		return fmt.Errorf("download: unsupported media %T", m)
	}
	if _, err := c.downloader.Download(api, loc).Stream(ctx, w); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return nil
}

// RefetchMessage loads message id from peer again to obtain fresh file references.
func (c *connection) RefetchMessage(ctx context.Context, peer platform.Peer, id int) (platform.Message, error) {
	api := c.client()
	if api == nil {
		return platform.Message{}, errNotReady
	}
	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: id}}

	var res tg.MessagesMessagesClass
	var err error
	if peer.Kind == platform.KindChannel {
		channel, ok := c.peers.get(peer)
		if !ok {
			return platform.Message{}, fmt.Errorf("%w: channel %s", platform.ErrPeerNotFound, peer.ID)
		}
		channelID, _ := channel.ID.Int64()
		res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: channelID, AccessHash: channel.AccessHash},
			ID:      ids,
		})
	} else {
		res, err = api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return platform.Message{}, fmt.Errorf("get message %d: %w", id, err)
	}

	var messages []tg.MessageClass
	switch v := res.(type) {
	case *tg.MessagesMessages:
		c.peers.remember(v.Users, v.Chats)
		messages = v.Messages
	case *tg.MessagesMessagesSlice:
		c.peers.remember(v.Users, v.Chats)
		messages = v.Messages
	case *tg.MessagesChannelMessages:
		c.peers.remember(v.Users, v.Chats)
		messages = v.Messages
	}
	for _, m := range messages {
		if msg, ok := m.(*tg.Message); ok && msg.ID == id {
			return convertMessage(msg), nil
		}
	}
	return platform.Message{}, fmt.Errorf("message %d not found", id)
}

// Dialogs returns the entities of the most recent dialogs, newest first.
func (c *connection) Dialogs(ctx context.Context, limit int) ([]platform.Entity, error) {
	api := c.client()
	if api == nil {
		return nil, errNotReady
	}
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get dialogs: %w", err)
	}

	var dialogs []tg.DialogClass
	var known map[peerRef]platform.Entity
	switch v := res.(type) {
	case *tg.MessagesDialogs:
		known = c.peers.remember(v.Users, v.Chats)
		dialogs = v.Dialogs
	case *tg.MessagesDialogsSlice:
		known = c.peers.remember(v.Users, v.Chats)
		dialogs = v.Dialogs
	default:
		return nil, nil
	}
	return dialogEntities(dialogs, known), nil
}

func dialogEntities(dialogs []tg.DialogClass, known map[peerRef]platform.Entity) []platform.Entity {
	out := make([]platform.Entity, 0, len(dialogs))
	for _, d := range dialogs {
		ref, ok := refOf(convertPeer(d.GetPeer()))
		if !ok {
			continue
		}
		if e, ok := known[ref]; ok {
			out = append(out, e)
		}
	}
	return out
}
