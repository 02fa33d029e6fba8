package fs

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/itchan-dev/mediadesk/backend/internal/service"
	"github.com/itchan-dev/mediadesk/shared/domain"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
)

const (
	uploadsDir    = "uploads"
	tempDir       = "temp"
	thumbnailsDir = "thumbnails"

	// TempBucket is the URL segment for temporary files: /api/temp/{file}.
	TempBucket = "temp"
)

var buckets = []domain.MediaType{domain.Videos, domain.Photos, domain.Audio}

// Storage keeps the media library under a single root:
//
//	uploads/{videos,photos,audio}/{millis}-{name}
//	uploads/thumbnails/{stored}.jpg
//	temp/{millis}-{name}
type Storage struct {
	rootPath string
	now      func() time.Time
}

var _ service.MediaStorage = (*Storage)(nil)

func New(rootPath string) (*Storage, error) {
	p := filepath.Clean(rootPath)

	dirs := []string{filepath.Join(p, tempDir), filepath.Join(p, uploadsDir, thumbnailsDir)}
	for _, t := range buckets {
		dirs = append(dirs, filepath.Join(p, uploadsDir, string(t)))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}

	return &Storage{rootPath: p, now: time.Now}, nil
}

// Save writes data as {millis}-{name} and returns the stored item.
// name must already be a bare filename.
func (s *Storage) Save(data io.Reader, name string, t domain.MediaType, temp bool) (domain.MediaItem, error) {
	if err := checkName(name); err != nil {
		return domain.MediaItem{}, err
	}
	if !t.Valid() {
		return domain.MediaItem{}, fmt.Errorf("unknown media type %q", t)
	}

	millis := s.now().UnixMilli()
	stored := fmt.Sprintf("%d-%s", millis, name)
	dir := s.dirFor(t, temp)
	fullPath := filepath.Join(dir, stored)

	dst, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("failed to create destination file: %w", err)
	}
	size, err := io.Copy(dst, data)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullPath)
		return domain.MediaItem{}, fmt.Errorf("failed to copy file data: %w", err)
	}

	return domain.MediaItem{
		Id:           strconv.FormatInt(millis, 10),
		Name:         name,
		Path:         urlPath(t, temp, stored),
		Type:         t,
		Size:         size,
		LastModified: millis,
		IsTemp:       temp,
	}, nil
}

// List reads every bucket, newest first. Temp files are not part of the catalog.
func (s *Storage) List() (domain.Catalog, error) {
	catalog := domain.EmptyCatalog()
	for _, t := range buckets {
		items, err := s.readBucket(t)
		if err != nil {
			return domain.Catalog{}, err
		}
		switch t {
		case domain.Videos:
			catalog.Videos = items
		case domain.Photos:
			catalog.Photos = items
		case domain.Audio:
			catalog.Audio = items
		}
	}
	return catalog, nil
}

func (s *Storage) readBucket(t domain.MediaType) ([]domain.MediaItem, error) {
	dir := s.dirFor(t, false)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return []domain.MediaItem{}, nil
		}
		return nil, fmt.Errorf("failed to read %s directory: %w", t, err)
	}

	items := make([]domain.MediaItem, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		item := itemFromFile(t, entry.Name(), info)
		if s.exists(filepath.Join(s.rootPath, uploadsDir, thumbnailsDir, entry.Name()+".jpg")) {
			item.ThumbnailPath = path.Join("/api", thumbnailsDir, entry.Name()+".jpg")
		}
		items = append(items, item)
	}
	return domain.NewestFirst(items), nil
}

// itemFromFile parses the {millis}-{name} convention, falling back to mtime
// for files dropped into the library by other tools.
func itemFromFile(t domain.MediaType, stored string, info iofs.FileInfo) domain.MediaItem {
	item := domain.MediaItem{
		Id:           stored,
		Name:         stored,
		Path:         urlPath(t, false, stored),
		Type:         t,
		Size:         info.Size(),
		LastModified: info.ModTime().UnixMilli(),
	}
	if prefix, rest, ok := strings.Cut(stored, "-"); ok && rest != "" {
		if millis, err := strconv.ParseInt(prefix, 10, 64); err == nil {
			item.Id = prefix
			item.Name = rest
			item.LastModified = millis
		}
	}
	return item
}

// Open opens a stored file by URL segment: a media type, "temp" or "thumbnails".
func (s *Storage) Open(bucket, filename string) (*os.File, error) {
	if err := checkName(filename); err != nil {
		return nil, err
	}
	var dir string
	switch bucket {
	case TempBucket:
		dir = filepath.Join(s.rootPath, tempDir)
	case thumbnailsDir:
		dir = filepath.Join(s.rootPath, uploadsDir, thumbnailsDir)
	default:
		t := domain.MediaType(bucket)
		if !t.Valid() {
			return nil, notFound(filename)
		}
		dir = s.dirFor(t, false)
	}

	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, notFound(filename)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// LocalPath maps a server path such as /api/videos/{file} to its location on disk.
func (s *Storage) LocalPath(p domain.MediaPath) (string, error) {
	rest, ok := strings.CutPrefix(p, "/api/")
	if !ok {
		return "", &internal_errors.ErrorWithStatusCode{Message: "Invalid media path", StatusCode: http.StatusBadRequest}
	}
	bucket, filename, ok := strings.Cut(rest, "/")
	if !ok {
		return "", &internal_errors.ErrorWithStatusCode{Message: "Invalid media path", StatusCode: http.StatusBadRequest}
	}
	f, err := s.Open(bucket, filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return filepath.Abs(f.Name())
}

func (s *Storage) DeleteTemp(filename string) error {
	if err := checkName(filename); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.rootPath, tempDir, filename))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return notFound(filename)
		}
		return fmt.Errorf("failed to delete temp file: %w", err)
	}
	return nil
}

// ClearTemp removes every regular file in temp and reports how many went away.
func (s *Storage) ClearTemp() (int, error) {
	dir := filepath.Join(s.rootPath, tempDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read temp directory: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			count++
		}
	}
	return count, nil
}

func (s *Storage) dirFor(t domain.MediaType, temp bool) string {
	if temp {
		return filepath.Join(s.rootPath, tempDir)
	}
	return filepath.Join(s.rootPath, uploadsDir, string(t))
}

func (s *Storage) exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func urlPath(t domain.MediaType, temp bool, stored string) domain.MediaPath {
	if temp {
		return "/api/" + TempBucket + "/" + stored
	}
	return "/api/" + string(t) + "/" + stored
}

// checkName rejects anything that is not a single path element.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return &internal_errors.ErrorWithStatusCode{Message: "Invalid filename", StatusCode: http.StatusBadRequest}
	}
	return nil
}

func notFound(filename string) error {
	return &internal_errors.ErrorWithStatusCode{Message: fmt.Sprintf("File not found: %s", filename), StatusCode: http.StatusNotFound}
}
