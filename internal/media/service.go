package media

import (
	"context"
	"log/slog"

	"github.com/memohai/tglistener/internal/platform"
)

// Store persists media bytes and returns their public location.
type Store interface {
	Upload(ctx context.Context, filename string, data []byte) (UploadResponse, error)
}

// Service runs the media pipeline: classify, fetch, hash, upload.
type Service struct {
	fetcher *Fetcher
	store   Store
	logger  *slog.Logger
}

// NewService creates a media service with the given fetcher and store.
func NewService(log *slog.Logger, fetcher *Fetcher, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		fetcher: fetcher,
		store:   store,
		logger:  log.With(slog.String("service", "media")),
	}
}

// Extract returns the uploaded attachment of msg, or nil when the message has
// no media or any step fails. Failures are logged, never returned: the caller
// forwards text-only.
func (s *Service) Extract(ctx context.Context, src Source, msg platform.Message) *Uploaded {
	if msg.Media == nil {
		return nil
	}
	log := s.logger.With(slog.Int("message_id", msg.ID), slog.String("peer_id", msg.Peer.ID.String()))

	desc := Classify(msg.Media)
	if desc.ContentType == ContentTypeText {
		kind := "unknown"
		if u, ok := msg.Media.(*platform.UnsupportedMedia); ok && u.Kind != "" {
			kind = u.Kind
		}
		log.Warn("skipping media", slog.String("kind", kind), slog.Any("error", ErrUnsupportedMedia))
		return nil
	}

	data, err := s.fetcher.Fetch(ctx, src, msg)
	if err != nil {
		log.Error("media fetch failed", slog.String("content_type", string(desc.ContentType)), slog.Any("error", err))
		return nil
	}
	if desc.ContentType == ContentTypePhoto {
		desc.MimeType, desc.Extension = Sniff(data)
	}

	name := Filename(data, desc.Extension)
	resp, err := s.store.Upload(ctx, name, data)
	if err != nil {
		log.Error("media upload failed", slog.String("filename", name), slog.Any("error", err))
		return nil
	}
	return &Uploaded{ContentType: desc.ContentType, FileURL: resp.FileURL}
}
