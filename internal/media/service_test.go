package media

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/tglistener/internal/platform"
)

type fakeStore struct {
	UploadFunc func(ctx context.Context, filename string, data []byte) (UploadResponse, error)
	names      []string
}

func (s *fakeStore) Upload(ctx context.Context, filename string, data []byte) (UploadResponse, error) {
	s.names = append(s.names, filename)
	return s.UploadFunc(ctx, filename, data)
}

func okStore() *fakeStore {
	return &fakeStore{UploadFunc: func(_ context.Context, filename string, _ []byte) (UploadResponse, error) {
		return UploadResponse{FileURL: "https://cdn.example/" + filename, Filename: filename}, nil
	}}
}

func writing(payload []byte) *fakeSource {
	return &fakeSource{DownloadFunc: func(_ context.Context, _ platform.Media, w io.Writer) error {
		_, err := w.Write(payload)
		return err
	}}
}

func TestExtractPhotoRefinesExtensionFromBytes(t *testing.T) {
	t.Parallel()

	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	store := okStore()
	svc := NewService(nil, NewFetcher(nil, FetcherConfig{}), store)

	got := svc.Extract(context.Background(), writing(png), photoMessage(&platform.Photo{ID: 9}))
	require.NotNil(t, got)
	assert.Equal(t, ContentTypePhoto, got.ContentType)
	require.Len(t, store.names, 1)
	assert.Equal(t, ContentHash(png)+".png", store.names[0])
	assert.Equal(t, "https://cdn.example/"+store.names[0], got.FileURL)
}

func TestExtractDocumentUsesMimeExtension(t *testing.T) {
	t.Parallel()

	store := okStore()
	svc := NewService(nil, NewFetcher(nil, FetcherConfig{}), store)
	doc := &platform.Document{MimeType: "video/mp4", Attributes: []platform.DocumentAttribute{platform.VideoAttribute{Round: true}}}

	got := svc.Extract(context.Background(), writing([]byte("video")), photoMessage(doc))
	require.NotNil(t, got)
	assert.Equal(t, ContentTypeVideoNote, got.ContentType)
	assert.Equal(t, ContentHash([]byte("video"))+".mp4", store.names[0])
}

func TestExtractSkipsUnsupportedMedia(t *testing.T) {
	t.Parallel()

	store := okStore()
	src := writing([]byte("x"))
	svc := NewService(nil, NewFetcher(nil, FetcherConfig{}), store)

	assert.Nil(t, svc.Extract(context.Background(), src, photoMessage(&platform.UnsupportedMedia{Kind: "poll"})))
	assert.Nil(t, svc.Extract(context.Background(), src, photoMessage(nil)))
	assert.Equal(t, 0, src.downloads)
	assert.Empty(t, store.names)
}

func TestExtractUploadFailureYieldsNoMedia(t *testing.T) {
	t.Parallel()

	store := &fakeStore{UploadFunc: func(context.Context, string, []byte) (UploadResponse, error) {
		return UploadResponse{}, ErrUploadFailed
	}}
	svc := NewService(nil, NewFetcher(nil, FetcherConfig{}), store)

	assert.Nil(t, svc.Extract(context.Background(), writing([]byte("x")), photoMessage(&platform.Document{MimeType: "application/pdf"})))
	assert.Len(t, store.names, 1)
}

func TestExtractDownloadFailureSkipsUpload(t *testing.T) {
	t.Parallel()

	store := okStore()
	src := &fakeSource{DownloadFunc: func(context.Context, platform.Media, io.Writer) error { return errors.New("boom") }}
	svc := NewService(nil, NewFetcher(nil, FetcherConfig{}), store)

	assert.Nil(t, svc.Extract(context.Background(), src, photoMessage(&platform.Document{MimeType: "application/pdf"})))
	assert.Empty(t, store.names)
	assert.Equal(t, 1, src.refetches)
}
