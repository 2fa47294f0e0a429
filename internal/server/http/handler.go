// Package http exposes the file service over a JSON/HTTP API. Handlers only
// translate between requests and FileService calls; access control and
// integrity checks live in the service.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/dmitrijs2005/fileshare/internal/logging"
	"github.com/dmitrijs2005/fileshare/internal/server/models"
	"github.com/dmitrijs2005/fileshare/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// FileService is the subset of services.FileService used by the handlers.
type FileService interface {
	SubmitFile(ctx context.Context, ownerID, name string, content io.Reader, size int64) (*models.File, error)
	FetchFile(ctx context.Context, fileID, userID string) (*models.File, io.Reader, error)
	UpdateFile(ctx context.Context, fileID, userID, name string, content io.Reader, size int64) (*models.File, error)
	RemoveFile(ctx context.Context, fileID, userID string) (*models.File, error)
	ListFiles(ctx context.Context, userID string) ([]*models.File, error)
	FindFiles(ctx context.Context, query string) ([]string, error)
	FindFilesByTag(ctx context.Context, tag string) ([]string, error)
	TagFile(ctx context.Context, fileID, userID string, tags []string) error
	DescribeFile(ctx context.Context, fileID, userID string) (*services.FileHistory, error)
}

// uploadField is the multipart form field carrying file content.
const uploadField = "file"

// FileHandler serves the /api/files routes.
type FileHandler struct {
	svc           FileService
	logger        logging.Logger
	maxUploadSize int64
}

func NewFileHandler(svc FileService, l logging.Logger, maxUploadSize int64) *FileHandler {
	return &FileHandler{svc: svc, logger: l.With("module", "http"), maxUploadSize: maxUploadSize}
}

// TagsRequest is the body of POST /api/files/{id}/tags.
type TagsRequest struct {
	Tags []string `json:"tags"`
}

// SearchResponse lists matching file ids.
type SearchResponse struct {
	IDs []string `json:"ids"`
}

func (h *FileHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	name, content, err := h.openUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if name == "" {
		h.writeError(w, r, fmt.Errorf("%w: file name is required", common.ErrorInvalidArgument))
		return
	}

	f, err := h.svc.SubmitFile(r.Context(), userID, name, content, -1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/files/"+f.ID)
	writeJSONStatus(w, http.StatusCreated, f)
}

func (h *FileHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	f, content, err := h.svc.FetchFile(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("X-Checksum-SHA256", f.Checksum)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, content); err != nil {
		h.logger.Warn(r.Context(), "download interrupted", "file_id", f.ID, "error", err)
	}
}

func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	name, content, err := h.openUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := h.svc.UpdateFile(r.Context(), chi.URLParam(r, "id"), userID, name, content, -1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, f)
}

func (h *FileHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	f, err := h.svc.RemoveFile(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, f)
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.ListFiles(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, files)
}

func (h *FileHandler) Versions(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.DescribeFile(r.Context(), chi.URLParam(r, "id"), UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, history)
}

// Search answers ?q= with a token search and ?tag= with a tag lookup.
func (h *FileHandler) Search(w http.ResponseWriter, r *http.Request) {
	var (
		ids []string
		err error
	)
	if tag := r.URL.Query().Get("tag"); tag != "" {
		ids, err = h.svc.FindFilesByTag(r.Context(), tag)
	} else {
		ids, err = h.svc.FindFiles(r.Context(), r.URL.Query().Get("q"))
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, SearchResponse{IDs: ids})
}

func (h *FileHandler) Tag(w http.ResponseWriter, r *http.Request) {
	var req TagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Tags) == 0 {
		h.writeError(w, r, fmt.Errorf("%w: expected {\"tags\": [...]}", common.ErrorInvalidArgument))
		return
	}

	if err := h.svc.TagFile(r.Context(), chi.URLParam(r, "id"), UserIDFromContext(r.Context()), req.Tags); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func Ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "OK"})
}

// openUpload returns the file name and a reader positioned at the "file" part
// of a multipart body. The body is capped at maxUploadSize.
func (h *FileHandler) openUpload(w http.ResponseWriter, r *http.Request) (string, io.Reader, error) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", common.ErrorInvalidArgument, err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, fmt.Errorf("%w: missing %q part", common.ErrorInvalidArgument, uploadField)
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", nil, err
			}
			return "", nil, fmt.Errorf("%w: %w", common.ErrorInvalidArgument, err)
		}
		if part.FormName() == uploadField {
			return part.FileName(), part, nil
		}
		_ = part.Close()
	}
}
