package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/memohai/tglistener/internal/platform"
)

const (
	fallbackPhotoMime = "image/jpeg"
	fallbackPhotoExt  = "jpg"
	fallbackExt       = "bin"
)

// Classify maps a media reference to its content type, mime type and file
// extension. Unknown media yields ContentTypeText; callers treat that as
// "no extractable media".
func Classify(m platform.Media) Descriptor {
	switch v := m.(type) {
	case *platform.Photo:
		return Descriptor{ContentType: ContentTypePhoto, MimeType: fallbackPhotoMime, Extension: fallbackPhotoExt}
	case *platform.Document:
		return classifyDocument(v)
	default:
		return Descriptor{ContentType: ContentTypeText, Extension: fallbackExt}
	}
}

func classifyDocument(doc *platform.Document) Descriptor {
	var round, voice, sticker, animated, gifName bool
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case platform.VideoAttribute:
			round = round || a.Round
		case platform.AudioAttribute:
			voice = voice || a.Voice
		case platform.StickerAttribute:
			sticker = true
		case platform.AnimatedAttribute:
			animated = true
		case platform.FilenameAttribute:
			gifName = gifName || strings.HasSuffix(a.Name, ".gif")
		}
	}

	mime := doc.MimeType
	d := Descriptor{Extension: fallbackExt}
	switch {
	case sticker:
		if mime == "" {
			mime = "image/webp"
		}
		d.ContentType = ContentTypeSticker
		d.Extension = "webp"
	case mime == "video/mp4" && (animated || gifName):
		mime = "image/gif"
		d.ContentType = ContentTypeAnimation
		d.Extension = "gif"
	case strings.HasPrefix(mime, "video/"):
		d.ContentType = ContentTypeVideo
		if round {
			d.ContentType = ContentTypeVideoNote
		}
	case strings.HasPrefix(mime, "audio/"):
		d.ContentType = ContentTypeAudio
		if voice {
			d.ContentType = ContentTypeVoice
		}
	default:
		d.ContentType = ContentTypeFile
	}
	d.MimeType = mime
	if ext := ExtensionForMime(mime); ext != "" {
		d.Extension = ext
	}
	return d
}

// ExtensionForMime returns the canonical extension (without dot) for a mime
// type, or "" when the type is unknown.
func ExtensionForMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "" {
		return ""
	}
	if base, _, ok := strings.Cut(mime, ";"); ok {
		mime = strings.TrimSpace(base)
	}
	known := mimetype.Lookup(mime)
	if known == nil {
		return ""
	}
	return strings.TrimPrefix(known.Extension(), ".")
}

// Sniff inspects downloaded photo bytes and returns the detected mime type and
// extension, falling back to JPEG when the content is not recognized.
func Sniff(data []byte) (string, string) {
	detected := mimetype.Detect(data)
	if detected == nil || detected.Is("application/octet-stream") || detected.Is("text/plain") || detected.Extension() == "" {
		return fallbackPhotoMime, fallbackPhotoExt
	}
	mime, _, _ := strings.Cut(detected.String(), ";")
	return mime, strings.TrimPrefix(detected.Extension(), ".")
}
