package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/itchan-dev/mediadesk/shared/api"
	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

// === Media catalog ===

// Media fetches the full catalog. Every call is a full re-fetch.
func (c *APIClient) Media(ctx context.Context) (domain.Catalog, error) {
	const op = "GET /api/media"
	resp, err := c.do(ctx, http.MethodGet, "/api/media", "", nil)
	if err != nil {
		return domain.Catalog{}, err
	}
	if err := expectStatus(resp, op, http.StatusOK); err != nil {
		return domain.Catalog{}, err
	}
	defer resp.Body.Close()

	var catalog api.MediaListResponse
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return domain.Catalog{}, fmt.Errorf("cannot decode media response: %w", err)
	}
	// null buckets on the wire become empty slices
	if catalog.Videos == nil {
		catalog.Videos = []domain.MediaItem{}
	}
	if catalog.Photos == nil {
		catalog.Photos = []domain.MediaItem{}
	}
	if catalog.Audio == nil {
		catalog.Audio = []domain.MediaItem{}
	}
	return catalog, nil
}

// Refresh never fails: on any error it logs and returns an empty catalog.
// Callers must read an empty catalog as "unknown", not as "nothing exists".
func (c *APIClient) Refresh(ctx context.Context) domain.Catalog {
	catalog, err := c.Media(ctx)
	if err != nil {
		logger.Log.Warn("media catalog refresh failed", "component", "catalog", "error", err)
		return domain.EmptyCatalog()
	}
	return catalog
}

// Upload stores a file through POST /api/upload (or /api/upload/temp when temp is set).
func (c *APIClient) Upload(ctx context.Context, filename string, data io.Reader, temp bool) (domain.MediaItem, error) {
	path := "/api/upload"
	if temp {
		path = "/api/upload/temp"
	}
	op := "POST " + path

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return domain.MediaItem{}, fmt.Errorf("failed to copy upload data: %w", err)
	}
	if err := form.Close(); err != nil {
		return domain.MediaItem{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, form.FormDataContentType(), &buf)
	if err != nil {
		return domain.MediaItem{}, err
	}
	if err := expectStatus(resp, op, http.StatusOK, http.StatusCreated); err != nil {
		return domain.MediaItem{}, err
	}
	defer resp.Body.Close()

	var item domain.MediaItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return domain.MediaItem{}, fmt.Errorf("cannot decode upload response: %w", err)
	}
	return item, nil
}

func (c *APIClient) DeleteTemp(ctx context.Context, filename string) error {
	path := "/api/temp/" + url.PathEscape(filename)
	resp, err := c.do(ctx, http.MethodDelete, path, "", nil)
	if err != nil {
		return err
	}
	if err := expectStatus(resp, "DELETE /api/temp/{filename}", http.StatusOK); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ClearTemp removes every temporary file and reports how many were deleted.
func (c *APIClient) ClearTemp(ctx context.Context) (int, error) {
	const op = "DELETE /api/temp"
	resp, err := c.do(ctx, http.MethodDelete, "/api/temp", "", nil)
	if err != nil {
		return 0, err
	}
	if err := expectStatus(resp, op, http.StatusOK); err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var body api.TempDeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("cannot decode temp cleanup response: %w", err)
	}
	if body.DeletedCount == nil {
		return 0, nil
	}
	return *body.DeletedCount, nil
}
