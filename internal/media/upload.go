package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultUploadPath    = "/media"
	DefaultUploadTimeout = time.Minute
	uploadFormField      = "file"
)

// UploaderConfig locates the external media store.
type UploaderConfig struct {
	BaseURL string
	Path    string
	Timeout time.Duration
}

// Uploader posts files to the external media store as multipart forms.
type Uploader struct {
	client *resty.Client
	path   string
	logger *slog.Logger
}

// NewUploader creates a media store client.
func NewUploader(log *slog.Logger, cfg UploaderConfig) *Uploader {
	if log == nil {
		log = slog.Default()
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultUploadPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")).
		SetTimeout(timeout)
	return &Uploader{
		client: client,
		path:   path,
		logger: log.With(slog.String("component", "media_uploader")),
	}
}

// Upload sends data under filename. Any non-2xx answer is ErrUploadFailed.
func (u *Uploader) Upload(ctx context.Context, filename string, data []byte) (UploadResponse, error) {
	var out UploadResponse
	resp, err := u.client.R().
		SetContext(ctx).
		SetFileReader(uploadFormField, filename, bytes.NewReader(data)).
		SetResult(&out).
		Post(u.path)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if !resp.IsSuccess() {
		return UploadResponse{}, fmt.Errorf("%w: status %d: %s", ErrUploadFailed, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if strings.TrimSpace(out.FileURL) == "" {
		return UploadResponse{}, fmt.Errorf("%w: response has no fileUrl", ErrUploadFailed)
	}
	u.logger.Debug("media uploaded",
		slog.String("filename", filename),
		slog.Int("size", len(data)),
		slog.String("file_url", out.FileURL),
	)
	return out, nil
}
