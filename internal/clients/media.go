package clients

import (
	"encoding/json"
	"mime"
	"path/filepath"
	"strings"
)

// MediaKind is the media content type tag used by the remote.
type MediaKind string

const (
	MediaKindImage         MediaKind = "IMAGE"
	MediaKindVideo         MediaKind = "VIDEO"
	MediaKindExternalVideo MediaKind = "EXTERNAL_VIDEO"
	MediaKindModel3d       MediaKind = "MODEL_3D"
)

// MediaKindFor derives the staging resource kind from a MIME type, falling back to the file extension.
func MediaKindFor(contentType, filename string) (MediaKind, string, error) {
	ct := strings.TrimSpace(contentType)
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
			ct = byExt
		}
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaKindImage, ct, nil
	case strings.HasPrefix(ct, "video/"):
		return MediaKindVideo, ct, nil
	}
	return "", ct, &UnsupportedMediaError{ContentType: ct}
}

// Media is a closed union of MediaImage, Video, ExternalVideo and Model3d.
type Media interface {
	MediaID() string
	Kind() MediaKind
	isMedia()
}

// MediaImage is an image media item.
type MediaImage struct {
	ID     string
	Alt    string
	Status string
	URL    string
	Width  int
	Height int
}

// VideoSource is one rendition of a hosted video.
type VideoSource struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Format   string `json:"format,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Video is a hosted video.
type Video struct {
	ID         string
	Alt        string
	Status     string
	PreviewURL string
	Sources    []VideoSource
}

// ExternalVideo is an embedded video hosted elsewhere.
type ExternalVideo struct {
	ID         string
	Alt        string
	Status     string
	EmbedURL   string
	PreviewURL string
}

// ModelSource is one rendition of a 3D model.
type ModelSource struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Format   string `json:"format,omitempty"`
}

// Model3d is a 3D model.
type Model3d struct {
	ID         string
	Alt        string
	Status     string
	PreviewURL string
	Sources    []ModelSource
}

func (m MediaImage) MediaID() string    { return m.ID }
func (m Video) MediaID() string         { return m.ID }
func (m ExternalVideo) MediaID() string { return m.ID }
func (m Model3d) MediaID() string       { return m.ID }

func (MediaImage) Kind() MediaKind    { return MediaKindImage }
func (Video) Kind() MediaKind         { return MediaKindVideo }
func (ExternalVideo) Kind() MediaKind { return MediaKindExternalVideo }
func (Model3d) Kind() MediaKind       { return MediaKindModel3d }

func (MediaImage) isMedia()    {}
func (Video) isMedia()         {}
func (ExternalVideo) isMedia() {}
func (Model3d) isMedia()       {}

type mediaHeader struct {
	Type   MediaKind `json:"type"`
	ID     string    `json:"id"`
	Alt    string    `json:"alt,omitempty"`
	Status string    `json:"status,omitempty"`
}

// MarshalJSON renders the image with its type tag.
func (m MediaImage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		mediaHeader
		Image struct {
			URL    string `json:"url"`
			Width  int    `json:"width,omitempty"`
			Height int    `json:"height,omitempty"`
		} `json:"image"`
	}{
		mediaHeader: mediaHeader{Type: MediaKindImage, ID: m.ID, Alt: m.Alt, Status: m.Status},
		Image: struct {
			URL    string `json:"url"`
			Width  int    `json:"width,omitempty"`
			Height int    `json:"height,omitempty"`
		}{URL: m.URL, Width: m.Width, Height: m.Height},
	})
}

// MarshalJSON renders the video with its type tag.
func (m Video) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		mediaHeader
		PreviewURL string        `json:"preview_url,omitempty"`
		Sources    []VideoSource `json:"sources"`
	}{
		mediaHeader: mediaHeader{Type: MediaKindVideo, ID: m.ID, Alt: m.Alt, Status: m.Status},
		PreviewURL:  m.PreviewURL,
		Sources:     nonNilVideoSources(m.Sources),
	})
}

// MarshalJSON renders the external video with its type tag.
func (m ExternalVideo) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		mediaHeader
		EmbedURL   string `json:"embed_url"`
		PreviewURL string `json:"preview_url,omitempty"`
	}{
		mediaHeader: mediaHeader{Type: MediaKindExternalVideo, ID: m.ID, Alt: m.Alt, Status: m.Status},
		EmbedURL:    m.EmbedURL,
		PreviewURL:  m.PreviewURL,
	})
}

// MarshalJSON renders the model with its type tag.
func (m Model3d) MarshalJSON() ([]byte, error) {
	sources := m.Sources
	if sources == nil {
		sources = []ModelSource{}
	}
	return json.Marshal(struct {
		mediaHeader
		PreviewURL string        `json:"preview_url,omitempty"`
		Sources    []ModelSource `json:"sources"`
	}{
		mediaHeader: mediaHeader{Type: MediaKindModel3d, ID: m.ID, Alt: m.Alt, Status: m.Status},
		PreviewURL:  m.PreviewURL,
		Sources:     sources,
	})
}

func nonNilVideoSources(s []VideoSource) []VideoSource {
	if s == nil {
		return []VideoSource{}
	}
	return s
}

// PreviewURL returns the best display URL for any media kind.
func PreviewURL(m Media) string {
	switch v := m.(type) {
	case MediaImage:
		return v.URL
	case Video:
		return v.PreviewURL
	case ExternalVideo:
		return v.PreviewURL
	case Model3d:
		return v.PreviewURL
	}
	return ""
}
