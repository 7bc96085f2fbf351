package media

// ContentType classifies a forwarded message by its attachment.
type ContentType string

const (
	ContentTypeText      ContentType = "TEXT"
	ContentTypePhoto     ContentType = "PHOTO"
	ContentTypeVideo     ContentType = "VIDEO"
	ContentTypeVideoNote ContentType = "VIDEO_NOTE"
	ContentTypeAudio     ContentType = "AUDIO"
	ContentTypeVoice     ContentType = "VOICE"
	ContentTypeFile      ContentType = "FILE"
	ContentTypeAnimation ContentType = "ANIMATION"
	ContentTypeSticker   ContentType = "STICKER"
)

// Descriptor is the classifier output for one media reference.
type Descriptor struct {
	ContentType ContentType
	MimeType    string
	// Extension has no leading dot.
	Extension string
}

// Uploaded is a media attachment stored in the external media store.
type Uploaded struct {
	ContentType ContentType `json:"contentType"`
	FileURL     string      `json:"fileUrl"`
}

// UploadResponse is the media store's success body.
type UploadResponse struct {
	FileURL      string `json:"fileUrl"`
	Filename     string `json:"filename"`
	Path         string `json:"path,omitempty"`
	OriginalName string `json:"originalname,omitempty"`
	MimeType     string `json:"mimetype,omitempty"`
	Size         int64  `json:"size,omitempty"`
}
