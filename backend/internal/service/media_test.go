package service

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itchan-dev/mediadesk/shared/domain"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
)

type MockMediaStorage struct {
	SaveFunc       func(data io.Reader, name string, t domain.MediaType, temp bool) (domain.MediaItem, error)
	ListFunc       func() (domain.Catalog, error)
	OpenFunc       func(bucket, filename string) (*os.File, error)
	LocalPathFunc  func(p domain.MediaPath) (string, error)
	DeleteTempFunc func(filename string) error
	ClearTempFunc  func() (int, error)
}

func (m *MockMediaStorage) Save(data io.Reader, name string, t domain.MediaType, temp bool) (domain.MediaItem, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(data, name, t, temp)
	}
	return domain.MediaItem{Name: name, Type: t, IsTemp: temp}, nil
}

func (m *MockMediaStorage) List() (domain.Catalog, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return domain.EmptyCatalog(), nil
}

func (m *MockMediaStorage) Open(bucket, filename string) (*os.File, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(bucket, filename)
	}
	return nil, os.ErrNotExist
}

func (m *MockMediaStorage) LocalPath(p domain.MediaPath) (string, error) {
	if m.LocalPathFunc != nil {
		return m.LocalPathFunc(p)
	}
	return "/library" + p, nil
}

func (m *MockMediaStorage) DeleteTemp(filename string) error {
	if m.DeleteTempFunc != nil {
		return m.DeleteTempFunc(filename)
	}
	return nil
}

func (m *MockMediaStorage) ClearTemp() (int, error) {
	if m.ClearTempFunc != nil {
		return m.ClearTempFunc()
	}
	return 0, nil
}

// minimal ISO BMFF header: size, "ftyp", major brand "isom"
var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1'}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R'}

func TestDetectType(t *testing.T) {
	testCases := []struct {
		name        string
		head        []byte
		contentType string
		filename    string
		want        domain.MediaType
	}{
		{"sniffed mp4", mp4Header, "", "clip.bin", domain.Videos},
		{"sniffed png wins over declared type", pngHeader, "video/mp4", "frame.mp4", domain.Photos},
		{"declared audio type", []byte("not really audio"), "audio/mpeg", "track.bin", domain.Audio},
		{"declared type with params", []byte("x"), "image/jpeg; charset=binary", "a", domain.Photos},
		{"extension fallback audio", []byte("plain"), "application/octet-stream", "voice.M4A", domain.Audio},
		{"extension fallback photo", nil, "", "pic.webp", domain.Photos},
		{"unknown defaults to videos", []byte("plain"), "", "notes.txt", domain.Videos},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectType(tc.head, tc.contentType, tc.filename))
		})
	}
}

func TestSecureFilename(t *testing.T) {
	testCases := map[string]string{
		"clip.mp4":             "clip.mp4",
		"my holiday clip.mp4":  "my_holiday_clip.mp4",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\song.mp3`: "song.mp3",
		"weird$name!.mov":      "weirdname.mov",
		".hidden":              "hidden",
		"":                     "",
		"..":                   "",
	}
	for in, want := range testCases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, SecureFilename(in))
		})
	}
}

func TestMediaUpload(t *testing.T) {
	t.Run("stores full content under detected type", func(t *testing.T) {
		var stored []byte
		storage := &MockMediaStorage{
			SaveFunc: func(data io.Reader, name string, mt domain.MediaType, temp bool) (domain.MediaItem, error) {
				b, err := io.ReadAll(data)
				require.NoError(t, err)
				stored = b
				return domain.MediaItem{Name: name, Type: mt, IsTemp: temp, Size: int64(len(b))}, nil
			},
		}
		content := append(append([]byte{}, mp4Header...), bytes.Repeat([]byte{0x01}, 5000)...)

		item, err := NewMedia(storage).Upload(bytes.NewReader(content), "my clip.mp4", "application/octet-stream", false)

		require.NoError(t, err)
		assert.Equal(t, "my_clip.mp4", item.Name)
		assert.Equal(t, domain.Videos, item.Type)
		assert.Equal(t, content, stored)
	})

	t.Run("small temp file", func(t *testing.T) {
		item, err := NewMedia(&MockMediaStorage{}).Upload(bytes.NewReader([]byte("abc")), "a.mp3", "", true)

		require.NoError(t, err)
		assert.Equal(t, domain.Audio, item.Type)
		assert.True(t, item.IsTemp)
	})

	t.Run("empty filename", func(t *testing.T) {
		_, err := NewMedia(&MockMediaStorage{}).Upload(bytes.NewReader([]byte("abc")), "", "", false)

		var e *internal_errors.ErrorWithStatusCode
		require.ErrorAs(t, err, &e)
		assert.Equal(t, http.StatusBadRequest, e.StatusCode)
	})
}
