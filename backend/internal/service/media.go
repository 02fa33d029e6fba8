package service

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/itchan-dev/mediadesk/shared/domain"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

const sniffLen = 3072

type MediaStorage interface {
	// Save stores data as a new file and returns the catalog entry for it.
	Save(data io.Reader, name string, t domain.MediaType, temp bool) (domain.MediaItem, error)
	// List returns the catalog, newest first within each bucket.
	List() (domain.Catalog, error)
	// Open opens a stored file by bucket ("videos", "photos", "audio", "temp", "thumbnails").
	Open(bucket, filename string) (*os.File, error)
	LocalPath(p domain.MediaPath) (string, error)
	DeleteTemp(filename string) error
	ClearTemp() (int, error)
}

// to mock service in tests
type MediaService interface {
	List() (domain.Catalog, error)
	Upload(data io.Reader, filename, contentType string, temp bool) (domain.MediaItem, error)
	Open(bucket, filename string) (*os.File, error)
	DeleteTemp(filename string) error
	ClearTemp() (int, error)
}

type Media struct {
	storage MediaStorage
}

func NewMedia(storage MediaStorage) *Media {
	return &Media{storage: storage}
}

func (m *Media) List() (domain.Catalog, error) {
	return m.storage.List()
}

// Upload sniffs the content to pick a bucket and stores the file.
func (m *Media) Upload(data io.Reader, filename, contentType string, temp bool) (domain.MediaItem, error) {
	name := SecureFilename(filename)
	if name == "" {
		return domain.MediaItem{}, &internal_errors.ErrorWithStatusCode{Message: "No selected file", StatusCode: http.StatusBadRequest}
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(data, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return domain.MediaItem{}, err
	}
	head = head[:n]

	t := DetectType(head, contentType, name)
	item, err := m.storage.Save(io.MultiReader(bytes.NewReader(head), data), name, t, temp)
	if err != nil {
		return domain.MediaItem{}, err
	}
	logger.Log.Info("media uploaded", "component", "media", "name", item.Name, "type", item.Type, "size", item.Size, "temp", temp)
	return item, nil
}

func (m *Media) Open(bucket, filename string) (*os.File, error) {
	return m.storage.Open(bucket, filename)
}

func (m *Media) DeleteTemp(filename string) error {
	return m.storage.DeleteTemp(filename)
}

func (m *Media) ClearTemp() (int, error) {
	count, err := m.storage.ClearTemp()
	if err != nil {
		return 0, err
	}
	logger.Log.Info("temp files cleared", "component", "media", "count", count)
	return count, nil
}

var (
	videoExtensions = []string{".mp4", ".mov", ".avi", ".webm", ".mkv"}
	photoExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}
	audioExtensions = []string{".mp3", ".wav", ".ogg", ".aac", ".m4a"}
)

// DetectType picks the bucket from the sniffed content, then the declared
// content type, then the extension. Unknown files land in videos.
func DetectType(head []byte, contentType, filename string) domain.MediaType {
	if len(head) > 0 {
		if t, ok := typeFromMIME(mimetype.Detect(head).String()); ok {
			return t
		}
	}
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if t, ok := typeFromMIME(mediaType); ok {
				return t
			}
		}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case slices.Contains(videoExtensions, ext):
		return domain.Videos
	case slices.Contains(photoExtensions, ext):
		return domain.Photos
	case slices.Contains(audioExtensions, ext):
		return domain.Audio
	}
	return domain.Videos
}

func typeFromMIME(m string) (domain.MediaType, bool) {
	switch {
	case strings.HasPrefix(m, "video/"):
		return domain.Videos, true
	case strings.HasPrefix(m, "image/"):
		return domain.Photos, true
	case strings.HasPrefix(m, "audio/"):
		return domain.Audio, true
	}
	return "", false
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SecureFilename reduces a client filename to a safe single path element:
// directories dropped, spaces become underscores, other unsafe runs removed.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base("/" + name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	return name
}
