package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/memohai/tglistener/internal/platform"
)

const (
	DefaultDownloadTimeout        = 2 * time.Minute
	DefaultMaxConcurrentDownloads = 8
)

// Source is the slice of a live session the fetcher needs.
type Source interface {
	Download(ctx context.Context, media platform.Media, w io.Writer) error
	RefetchMessage(ctx context.Context, peer platform.Peer, id int) (platform.Message, error)
}

// FetcherConfig bounds downloads.
type FetcherConfig struct {
	MaxBytes      int64
	Timeout       time.Duration
	MaxConcurrent int64
}

// Fetcher downloads media bytes, refetching the message once when the first
// attempt fails (typically an expired file reference).
type Fetcher struct {
	logger   *slog.Logger
	sem      *semaphore.Weighted
	maxBytes int64
	timeout  time.Duration
}

// NewFetcher creates a fetcher shared by all sessions.
func NewFetcher(log *slog.Logger, cfg FetcherConfig) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = MaxAssetBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDownloadTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrentDownloads
	}
	return &Fetcher{
		logger:   log.With(slog.String("component", "media_fetcher")),
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		maxBytes: cfg.MaxBytes,
		timeout:  cfg.Timeout,
	}
}

// Fetch returns the bytes of msg's media. Oversized payloads are not retried.
func (f *Fetcher) Fetch(ctx context.Context, src Source, msg platform.Message) ([]byte, error) {
	if msg.Media == nil {
		return nil, fmt.Errorf("%w: message has no media", ErrDownloadFailed)
	}
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.sem.Release(1)

	data, err := f.download(ctx, src, msg.Media)
	if err == nil {
		return data, nil
	}
	if errors.Is(err, ErrAssetTooLarge) {
		return nil, err
	}
	f.logger.Warn("media download failed, refetching message",
		slog.Int("message_id", msg.ID),
		slog.String("peer_id", msg.Peer.ID.String()),
		slog.Any("error", err),
	)

	fresh, err := src.RefetchMessage(ctx, msg.Peer, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: refetch message: %w", ErrDownloadFailed, err)
	}
	if fresh.Media == nil {
		return nil, fmt.Errorf("%w: refetched message has no media", ErrDownloadFailed)
	}
	data, err = f.download(ctx, src, fresh.Media)
	if err != nil {
		if errors.Is(err, ErrAssetTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, src Source, m platform.Media) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	buf := newLimitedBuffer(f.maxBytes)
	w := &progressWriter{dst: buf, total: expectedSize(m), logger: f.logger}
	if err := src.Download(ctx, m, w); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, errors.New("empty payload")
	}
	return buf.Bytes(), nil
}

func expectedSize(m platform.Media) int64 {
	if doc, ok := m.(*platform.Document); ok {
		return doc.Size
	}
	return 0
}

// progressWriter logs cumulative download progress at debug level.
type progressWriter struct {
	dst      io.Writer
	total    int64
	received int64
	logger   *slog.Logger
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.received += int64(n)
	if n > 0 {
		attrs := []any{slog.Int64("received", w.received)}
		if w.total > 0 {
			attrs = append(attrs,
				slog.Int64("total", w.total),
				slog.String("percent", fmt.Sprintf("%.2f", float64(w.received)*100/float64(w.total))),
			)
		}
		w.logger.Debug("media download progress", attrs...)
	}
	return n, err
}
