package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/itchan-dev/mediadesk/shared/api"
	internal_errors "github.com/itchan-dev/mediadesk/shared/errors"
	"github.com/itchan-dev/mediadesk/shared/logger"
	"github.com/itchan-dev/mediadesk/shared/utils"
)

const multipartMemory = 32 << 20

func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.media.List()
	if err != nil {
		logger.Log.Error("failed to list media", "component", "media", "error", err)
		utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{Message: "Failed to read media directory", StatusCode: http.StatusInternalServerError})
		return
	}
	utils.WriteJSON(w, http.StatusOK, catalog)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, false)
}

func (h *Handler) UploadTemp(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, true)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, temp bool) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{
				Message:    fmt.Sprintf("File exceeds the upload limit of %d bytes", tooLarge.Limit),
				StatusCode: http.StatusRequestEntityTooLarge,
			})
			return
		}
		utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{Message: "No file part", StatusCode: http.StatusBadRequest})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{Message: "No file part", StatusCode: http.StatusBadRequest})
		return
	}
	defer file.Close()
	if header.Filename == "" {
		utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{Message: "No selected file", StatusCode: http.StatusBadRequest})
		return
	}

	item, err := h.media.Upload(file, header.Filename, header.Header.Get("Content-Type"), temp)
	if err != nil {
		logger.Log.Error("upload failed", "component", "media", "filename", header.Filename, "error", err)
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, item)
}

// ServeFile streams a stored file from bucket. Range requests are supported.
func (h *Handler) ServeFile(bucket string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		f, err := h.media.Open(bucket, filename)
		if err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		http.ServeContent(w, r, filename, info.ModTime(), f)
	}
}

func (h *Handler) DeleteTemp(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := h.media.DeleteTemp(filename); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, api.TempDeleteResponse{Success: true, Message: fmt.Sprintf("Deleted %s", filename)})
}

func (h *Handler) ClearTemp(w http.ResponseWriter, r *http.Request) {
	count, err := h.media.ClearTemp()
	if err != nil {
		logger.Log.Error("failed to clear temp", "component", "media", "error", err)
		utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{Message: "Failed to read temp directory", StatusCode: http.StatusInternalServerError})
		return
	}
	utils.WriteJSON(w, http.StatusOK, api.TempDeleteResponse{
		Success:      true,
		DeletedCount: &count,
		Message:      fmt.Sprintf("Deleted %d temporary files", count),
	})
}
