package telegram

import (
	"time"

	"github.com/gotd/td/tg"

	"github.com/memohai/tglistener/internal/platform"
)

func userEntity(u *tg.User) platform.Entity {
	return platform.Entity{
		ID:         platform.NewID(u.ID),
		Kind:       platform.KindUser,
		AccessHash: u.AccessHash,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		Bot:        u.Bot,
	}
}

func chatEntity(c tg.ChatClass) (platform.Entity, bool) {
	switch v := c.(type) {
	case *tg.Chat:
		return platform.Entity{ID: platform.NewID(v.ID), Kind: platform.KindChat, Title: v.Title}, true
	case *tg.ChatForbidden:
		return platform.Entity{ID: platform.NewID(v.ID), Kind: platform.KindChat, Title: v.Title}, true
	case *tg.Channel:
		return platform.Entity{
			ID:         platform.NewID(v.ID),
			Kind:       platform.KindChannel,
			AccessHash: v.AccessHash,
			Title:      v.Title,
			Username:   v.Username,
		}, true
	case *tg.ChannelForbidden:
		return platform.Entity{
			ID:         platform.NewID(v.ID),
			Kind:       platform.KindChannel,
			AccessHash: v.AccessHash,
			Title:      v.Title,
		}, true
	default:
		return platform.Entity{}, false
	}
}

func convertPeer(p tg.PeerClass) platform.Peer {
	switch v := p.(type) {
	case *tg.PeerUser:
		return platform.Peer{Kind: platform.KindUser, ID: platform.NewID(v.UserID)}
	case *tg.PeerChat:
		return platform.Peer{Kind: platform.KindChat, ID: platform.NewID(v.ChatID)}
	case *tg.PeerChannel:
		return platform.Peer{Kind: platform.KindChannel, ID: platform.NewID(v.ChannelID)}
	default:
		return platform.Peer{}
	}
}

func convertMessage(m *tg.Message) platform.Message {
	msg := platform.Message{
		ID:   m.ID,
		Out:  m.Out,
		Peer: convertPeer(m.PeerID),
		Text: m.Message,
		Date: unixTime(m.Date),
	}
	if m.Media != nil {
		msg.Media = convertMedia(m.Media)
	}
	return msg
}

func convertMedia(m tg.MessageMediaClass) platform.Media {
	switch v := m.(type) {
	case *tg.MessageMediaEmpty:
		return nil
	case *tg.MessageMediaPhoto:
		p, ok := v.Photo.(*tg.Photo)
		if !ok {
			return &platform.UnsupportedMedia{Kind: v.TypeName()}
		}
		return &platform.Photo{
			ID:            p.ID,
			AccessHash:    p.AccessHash,
			FileReference: p.FileReference,
			ThumbSize:     largestPhotoSize(p.Sizes),
		}
	case *tg.MessageMediaDocument:
		d, ok := v.Document.(*tg.Document)
		if !ok {
			return &platform.UnsupportedMedia{Kind: v.TypeName()}
		}
		return &platform.Document{
			ID:            d.ID,
			AccessHash:    d.AccessHash,
			FileReference: d.FileReference,
			MimeType:      d.MimeType,
			Size:          d.Size,
			Attributes:    convertAttributes(d.Attributes),
		}
	default:
		return &platform.UnsupportedMedia{Kind: m.TypeName()}
	}
}

func convertAttributes(attrs []tg.DocumentAttributeClass) []platform.DocumentAttribute {
	out := make([]platform.DocumentAttribute, 0, len(attrs))
	for _, attr := range attrs {
		switch v := attr.(type) {
		case *tg.DocumentAttributeSticker:
			out = append(out, platform.StickerAttribute{})
		case *tg.DocumentAttributeAnimated:
			out = append(out, platform.AnimatedAttribute{})
		case *tg.DocumentAttributeVideo:
			out = append(out, platform.VideoAttribute{Round: v.RoundMessage})
		case *tg.DocumentAttributeAudio:
			out = append(out, platform.AudioAttribute{Voice: v.Voice})
		case *tg.DocumentAttributeFilename:
			out = append(out, platform.FilenameAttribute{Name: v.FileName})
		}
	}
	return out
}

// largestPhotoSize picks the size type with the most pixels among
// downloadable sizes.
func largestPhotoSize(sizes []tg.PhotoSizeClass) string {
	best, bestArea := "", -1
	for _, size := range sizes {
		var typ string
		var area int
		switch v := size.(type) {
		case *tg.PhotoSize:
			typ, area = v.Type, v.W*v.H
		case *tg.PhotoSizeProgressive:
			typ, area = v.Type, v.W*v.H
		default:
			continue
		}
		if area > bestArea {
			best, bestArea = typ, area
		}
	}
	return best
}

// convertUpdate maps a single update; only new (channel) messages with a
// full message body are surfaced as NewMessage.
func convertUpdate(u tg.UpdateClass) platform.Update {
	switch v := u.(type) {
	case *tg.UpdateNewMessage:
		if m, ok := v.Message.(*tg.Message); ok {
			return &platform.NewMessage{Message: convertMessage(m)}
		}
	case *tg.UpdateNewChannelMessage:
		if m, ok := v.Message.(*tg.Message); ok {
			return &platform.NewMessage{Message: convertMessage(m), Channel: true}
		}
	}
	return &platform.OtherUpdate{Kind: u.TypeName()}
}

func convertShortMessage(v *tg.UpdateShortMessage) *platform.ShortMessage {
	return &platform.ShortMessage{
		ID:     v.ID,
		Out:    v.Out,
		UserID: platform.NewID(v.UserID),
		Text:   v.Message,
		Date:   unixTime(v.Date),
	}
}

func unixTime(sec int) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}
