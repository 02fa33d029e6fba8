package api

import "github.com/itchan-dev/mediadesk/shared/domain"

type MediaListResponse = domain.Catalog

type TempDeleteResponse struct {
	Success      bool   `json:"success"`
	DeletedCount *int   `json:"deletedCount,omitempty"`
	Message      string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
