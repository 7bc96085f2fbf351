package media

import "errors"

var (
	// ErrDownloadFailed indicates media bytes could not be fetched, even after a refetch.
	ErrDownloadFailed = errors.New("media download failed")
	// ErrUploadFailed indicates the media store rejected or did not answer the upload.
	ErrUploadFailed = errors.New("media upload failed")
	// ErrAssetTooLarge indicates the payload exceeds the configured max asset size.
	ErrAssetTooLarge = errors.New("media asset too large")
	// ErrUnsupportedMedia indicates attached media that the classifier cannot map to a content type.
	ErrUnsupportedMedia = errors.New("unsupported media")
)
