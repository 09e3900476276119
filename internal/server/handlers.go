package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/silencecut/silencecut-api/internal/admission"
	"github.com/silencecut/silencecut-api/internal/storage"
	"github.com/silencecut/silencecut-api/internal/store"
	"github.com/silencecut/silencecut-api/internal/tier"
	"github.com/silencecut/silencecut-api/internal/trim"
)

// maxMultipartMemory bounds how much of a multipart body is buffered in
// memory before spilling to disk.
const maxMultipartMemory = 32 << 20

// videoExtensions lists the source containers treated as video, whose
// audio track is extracted before filtering.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
	".m4v":  true,
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	store     store.Store
	storage   storage.Storage
	policy    *admission.Policy
	tiers     tier.Service
	queue     trim.Enqueuer
	processor *trim.Processor
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	st store.Store,
	fs storage.Storage,
	policy *admission.Policy,
	tiers tier.Service,
	q trim.Enqueuer,
	processor *trim.Processor,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:     st,
		storage:   fs,
		policy:    policy,
		tiers:     tiers,
		queue:     q,
		processor: processor,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Upload handles POST /api/upload: one or more media files plus filter
// settings. Admission runs synchronously; accepted files become pending
// records and queued jobs, and the response returns immediately without
// blocking on processing.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestUserID(r)

	isPaid, err := h.tiers.IsPaidTier(ctx, userID)
	if err != nil {
		h.logger.Error("tier lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to resolve subscription tier", "TIER_LOOKUP_FAILED")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	uploads := r.MultipartForm.File["audio"]
	sizes := make([]int64, len(uploads))
	for i, fh := range uploads {
		sizes[i] = fh.Size
	}

	if err := h.policy.Check(admission.Request{IsPaid: isPaid, FileSizes: sizes}); err != nil {
		h.writeAdmissionError(w, err)
		return
	}

	threshold, err := formInt(r, "silenceThreshold", -40)
	if err != nil || threshold < -90 || threshold > 0 {
		writeError(w, http.StatusBadRequest, "silenceThreshold must be between -90 and 0 dB", "INVALID_THRESHOLD")
		return
	}
	minSilence, err := formInt(r, "minSilenceDuration", 500)
	if err != nil || minSilence < 50 || minSilence > 60000 {
		writeError(w, http.StatusBadRequest, "minSilenceDuration must be between 50 and 60000 ms", "INVALID_MIN_SILENCE")
		return
	}
	format := h.policy.ResolveFormat(isPaid, r.FormValue("outputFormat"))

	if err := h.policy.EvictOldestIfNeeded(ctx, userID, isPaid); err != nil {
		h.logger.Error("eviction failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to make room for upload", "EVICTION_FAILED")
		return
	}

	project := &store.Project{
		Name:               stripExtension(uploads[0].Filename),
		UserID:             userID,
		SilenceThresholdDB: threshold,
		MinSilenceMS:       minSilence,
		OutputFormat:       string(format),
	}
	if err := h.store.CreateProject(ctx, project); err != nil {
		h.logger.Error("failed to create project", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create project", "PROJECT_CREATION_FAILED")
		return
	}

	var savedPaths []string
	cleanup := func() {
		_ = h.storage.Remove(ctx, savedPaths)
		_ = h.store.DeleteProject(ctx, project.ID)
	}

	for _, fh := range uploads {
		path, size, err := h.saveUpload(ctx, fh)
		if err != nil {
			h.logger.Error("failed to store upload",
				slog.String("name", fh.Filename),
				slog.String("error", err.Error()),
			)
			cleanup()
			writeError(w, http.StatusInternalServerError, "failed to store upload", "UPLOAD_STORE_FAILED")
			return
		}
		savedPaths = append(savedPaths, path)

		rec := &store.File{
			ProjectID:          project.ID,
			OriginalFileName:   fh.Filename,
			OriginalFilePath:   path,
			Status:             store.StatusPending,
			SilenceThresholdDB: threshold,
			MinSilenceMS:       minSilence,
			OutputFormat:       string(format),
			FileType:           detectFileType(fh.Filename),
			FileSizeBytes:      size,
		}
		if err := h.store.CreateFile(ctx, rec); err != nil {
			h.logger.Error("failed to create file record", slog.String("error", err.Error()))
			cleanup()
			writeError(w, http.StatusInternalServerError, "failed to create file record", "FILE_CREATION_FAILED")
			return
		}

		job := trim.NewJob(rec.ID, path)
		job.SilenceThresholdDB = threshold
		job.MinSilenceMS = minSilence
		job.OutputFormat = format
		job.IsVideo = rec.FileType == store.FileTypeVideo
		job.Priority = isPaid
		h.queue.Enqueue(job)
	}

	created, err := h.store.GetProject(ctx, project.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load created project", "PROJECT_FETCH_FAILED")
		return
	}

	h.logger.Info("upload admitted",
		slog.Uint64("project_id", uint64(project.ID)),
		slog.Int("files", len(uploads)),
		slog.Bool("paid", isPaid),
	)
	writeJSON(w, http.StatusCreated, created)
}

// saveUpload streams one multipart part to storage.
func (h *Handlers) saveUpload(ctx context.Context, fh *multipart.FileHeader) (string, int64, error) {
	src, err := fh.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open multipart file: %w", err)
	}
	defer func() { _ = src.Close() }()
	return h.storage.SaveUpload(ctx, fh.Filename, src)
}

// writeAdmissionError maps admission rejections to specific HTTP responses.
func (h *Handlers) writeAdmissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, admission.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error(), "FILE_TOO_LARGE")
	case errors.Is(err, admission.ErrBatchNotAllowed):
		writeError(w, http.StatusForbidden, err.Error(), "BATCH_NOT_ALLOWED")
	case errors.Is(err, admission.ErrBatchTooLarge):
		writeError(w, http.StatusBadRequest, err.Error(), "BATCH_TOO_LARGE")
	case errors.Is(err, admission.ErrNoFiles):
		writeError(w, http.StatusBadRequest, err.Error(), "NO_FILES")
	default:
		writeError(w, http.StatusInternalServerError, "admission check failed", "ADMISSION_FAILED")
	}
}

// ListProjects handles GET /api/projects.
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context(), requestUserID(r))
	if err != nil {
		h.logger.Error("failed to list projects", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch projects", "PROJECT_LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// ListFavorites handles GET /api/projects/favorites.
func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListFavorites(r.Context(), requestUserID(r))
	if err != nil {
		h.logger.Error("failed to list favorites", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch favorites", "FAVORITES_LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// CreateProject handles POST /api/projects.
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	project := &store.Project{
		Name:               req.Name,
		UserID:             requestUserID(r),
		SilenceThresholdDB: valueOr(req.SilenceThreshold, -40),
		MinSilenceMS:       valueOr(req.MinSilenceDuration, 500),
		OutputFormat:       valueOr(req.OutputFormat, string(store.DefaultFormat)),
	}
	if err := h.store.CreateProject(r.Context(), project); err != nil {
		h.logger.Error("failed to create project", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create project", "PROJECT_CREATION_FAILED")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GetProject handles GET /api/projects/{id}.
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// UpdateProject handles PATCH /api/projects/{id}.
func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateProjectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	project, err := h.store.UpdateProject(r.Context(), id, store.ProjectUpdate{
		Name:               req.Name,
		IsFavorite:         req.IsFavorite,
		SilenceThresholdDB: req.SilenceThreshold,
		MinSilenceMS:       req.MinSilenceDuration,
		OutputFormat:       req.OutputFormat,
	})
	if err != nil {
		h.writeStoreError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// SetFavorite handles PATCH /api/projects/{id}/favorite.
func (h *Handlers) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	project, err := h.store.UpdateProject(r.Context(), id, store.ProjectUpdate{IsFavorite: &req.IsFavorite})
	if err != nil {
		h.writeStoreError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// DeleteProject handles DELETE /api/projects/{id}. Backing files are
// removed from disk best-effort before the records go away.
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	project, err := h.store.GetProject(ctx, id)
	if err != nil {
		h.writeStoreError(w, err, "project")
		return
	}

	var paths []string
	for _, f := range project.Files {
		paths = append(paths, f.OriginalFilePath, f.ProcessedFilePath)
	}
	_ = h.storage.Remove(ctx, paths)

	if err := h.store.DeleteProject(ctx, id); err != nil {
		h.writeStoreError(w, err, "project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFile handles GET /api/files/{id}: the status record polled by clients
// while processing runs.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.store.GetFile(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "file")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DownloadFile handles GET /api/files/{id}/download.
func (h *Handlers) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	rec, err := h.store.GetFile(ctx, id)
	if err != nil {
		h.writeStoreError(w, err, "file")
		return
	}
	if rec.Status != store.StatusCompleted || rec.ProcessedFilePath == "" {
		writeError(w, http.StatusNotFound, "processed file not found", "PROCESSED_NOT_FOUND")
		return
	}

	f, err := h.storage.Open(ctx, rec.ProcessedFilePath)
	if err != nil {
		writeError(w, http.StatusNotFound, "processed file not found", "PROCESSED_NOT_FOUND")
		return
	}
	defer func() { _ = f.Close() }()

	name := stripExtension(rec.OriginalFileName)
	if project, err := h.store.GetProject(ctx, rec.ProjectID); err == nil {
		name = project.Name
	}

	w.Header().Set("Content-Type", contentTypeFor(rec.OutputFormat))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s_processed.%s", name, rec.OutputFormat)))
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("download interrupted",
			slog.Uint64("file_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	}
}

// ReprocessFile handles POST /api/files/{id}/reprocess. The body is
// optional; omitted settings fall back to the owning project's current
// values.
func (h *Handlers) ReprocessFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req ReprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	isPaid, err := h.tiers.IsPaidTier(ctx, requestUserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve subscription tier", "TIER_LOOKUP_FAILED")
		return
	}

	var format *store.OutputFormat
	if req.OutputFormat != nil {
		f := h.policy.ResolveFormat(isPaid, *req.OutputFormat)
		format = &f
	}

	rec, err := h.processor.Reprocess(ctx, h.queue, id, trim.ReprocessSettings{
		SilenceThresholdDB: req.SilenceThreshold,
		MinSilenceMS:       req.MinSilenceDuration,
		OutputFormat:       format,
	}, isPaid)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrFileNotFound):
			writeError(w, http.StatusNotFound, "file not found", "FILE_NOT_FOUND")
		case errors.Is(err, trim.ErrNotTerminal):
			writeError(w, http.StatusConflict, "file is still being processed", "REPROCESS_CONFLICT")
		case errors.Is(err, trim.ErrNoSource):
			writeError(w, http.StatusGone, "no source file available", "NO_SOURCE")
		default:
			h.logger.Error("reprocess failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to reprocess file", "REPROCESS_FAILED")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

// Contact handles POST /api/contact.
func (h *Handlers) Contact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	msg := &store.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}
	if err := h.store.CreateContactMessage(r.Context(), msg); err != nil {
		h.logger.Error("failed to save contact message", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to send message", "CONTACT_FAILED")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Message sent successfully"})
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation, writing the error response itself on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeStoreError maps store lookup failures to HTTP responses.
func (h *Handlers) writeStoreError(w http.ResponseWriter, err error, kind string) {
	switch {
	case errors.Is(err, store.ErrProjectNotFound), errors.Is(err, store.ErrFileNotFound):
		writeError(w, http.StatusNotFound, kind+" not found", strings.ToUpper(kind)+"_NOT_FOUND")
	default:
		h.logger.Error("store operation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to access "+kind, "STORE_ERROR")
	}
}

// requestUserID extracts the authenticated user's ID. Authentication runs
// upstream; an empty value means an anonymous request.
func requestUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// pathID parses the {id} path segment, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid id", "INVALID_ID")
		return 0, false
	}
	return uint(id), true
}

// formInt parses an optional integer form value.
func formInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// valueOr dereferences p or returns def when nil.
func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// stripExtension removes the final extension from a filename.
func stripExtension(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// detectFileType classifies an upload by its extension.
func detectFileType(name string) store.FileType {
	if videoExtensions[strings.ToLower(filepath.Ext(name))] {
		return store.FileTypeVideo
	}
	return store.FileTypeAudio
}

// contentTypeFor maps an output format to its MIME type.
func contentTypeFor(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
