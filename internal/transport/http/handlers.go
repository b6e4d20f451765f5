package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/fedutinova/speechcoach/internal/config"
	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/fedutinova/speechcoach/internal/pipeline"
	"github.com/fedutinova/speechcoach/internal/profile"
	"github.com/fedutinova/speechcoach/internal/queue"
	"github.com/fedutinova/speechcoach/internal/storage"
	"github.com/fedutinova/speechcoach/internal/validation"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OwnerHeader carries the caller's owner id. There is no authentication.
const OwnerHeader = "X-Owner-ID"

const (
	maxMemory = 32 << 20
	sniffLen  = 3072

	timeFormat = time.RFC3339
)

// Jobs is the part of queue.Dispatcher the handlers use.
type Jobs interface {
	Submit(ctx context.Context, sub queue.Submission) (uuid.UUID, error)
	Poll(ctx context.Context, id uuid.UUID) (*job.Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*job.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	Len() int
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Jobs     Jobs
	Storage  storage.Storage
	Profiles *profile.Registry
	Config   config.Config
	// Deps are pinged by the readiness check, keyed by name.
	Deps map[string]Pinger
}

// AnalysisResponse is the poll view of a job.
type AnalysisResponse struct {
	ID          uuid.UUID        `json:"id"`
	Status      job.Status       `json:"status"`
	Progress    int              `json:"progress"`
	Result      *pipeline.Result `json:"result"`
	Error       *string          `json:"error"`
	Context     string           `json:"context,omitempty"`
	CreatedAt   string           `json:"created_at"`
	StartedAt   *string          `json:"started_at,omitempty"`
	CompletedAt *string          `json:"completed_at,omitempty"`
}

func (h *Handlers) Routers(r chi.Router) {
	r.Post("/v1/analyses", h.submitAnalysis)
	r.Get("/v1/analyses", h.listAnalyses)
	r.Get("/v1/analyses/{id}", h.getAnalysis)
	r.Post("/v1/analyses/{id}/cancel", h.cancelAnalysis)
	r.Get("/v1/profiles", h.listProfiles)

	// for static file serving for local storage
	if h.Config.StorageMode == "local" || h.Config.StorageMode == "filesystem" {
		r.Get("/files/*", h.serveFiles)
	}
}

func (h *Handlers) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(OwnerHeader)

	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxAudioSize+maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	audioRef := r.FormValue("audio_ref")
	var uploaded string
	if files := r.MultipartForm.File["audio"]; len(files) > 0 {
		key, verrs, err := h.uploadAudio(r.Context(), files[0])
		if len(verrs) > 0 {
			writeValidationError(w, verrs)
			return
		}
		if err != nil {
			slog.Error("failed to upload audio", "filename", files[0].Filename, "error", err)
			http.Error(w, "failed to store audio", http.StatusInternalServerError)
			return
		}
		audioRef, uploaded = key, key
	}

	metadata := map[string]string{}
	if c := strings.TrimSpace(r.FormValue("context")); c != "" {
		metadata[job.MetaContext] = c
	}
	if l := strings.TrimSpace(r.FormValue("language")); l != "" {
		metadata[job.MetaLanguage] = l
	}
	if uploaded != "" {
		metadata[job.MetaAudioSource] = job.AudioSourceUpload
	}

	id, err := h.Jobs.Submit(r.Context(), queue.Submission{
		OwnerID:    ownerID,
		AudioRef:   audioRef,
		Transcript: r.FormValue("transcript"),
		Metadata:   metadata,
	})
	if err != nil {
		if uploaded != "" {
			if delErr := h.Storage.DeleteFile(context.WithoutCancel(r.Context()), uploaded); delErr != nil {
				slog.Warn("failed to remove orphaned upload", "key", uploaded, "error", delErr)
			}
		}
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			writeValidationError(w, verrs)
			return
		}
		slog.Error("failed to submit analysis", "error", err)
		http.Error(w, "enqueue failed", http.StatusServiceUnavailable)
		return
	}

	slog.Info("analysis job submitted", "job_id", id, "owner_id", ownerID, "audio_ref", audioRef)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": id.String(),
		"status": job.StatusQueued,
	})
}

// uploadAudio validates and stores one uploaded recording and returns its
// storage key.
func (h *Handlers) uploadAudio(ctx context.Context, fh *multipart.FileHeader) (string, validation.ValidationErrors, error) {
	file, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]

	if verrs := validation.ValidateAudioUpload(fh, head); len(verrs) > 0 {
		return "", verrs, nil
	}

	contentType := mimetype.Detect(head).String()
	res, err := h.Storage.UploadFile(ctx, fh.Filename, io.MultiReader(bytes.NewReader(head), file), contentType)
	if err != nil {
		return "", nil, err
	}
	return res.Key, nil, nil
}

func (h *Handlers) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	j, err := h.Jobs.Poll(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get job", "job_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(j))
}

func (h *Handlers) listAnalyses(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(OwnerHeader)
	if ownerID == "" {
		http.Error(w, OwnerHeader+" header is required", http.StatusBadRequest)
		return
	}

	jobs, err := h.Jobs.ListByOwner(r.Context(), ownerID)
	if err != nil {
		slog.Error("failed to list jobs", "owner_id", ownerID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	summaries := make([]job.Summary, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, j.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  summaries,
		"count": len(summaries),
	})
}

func (h *Handlers) cancelAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	cancelled, err := h.Jobs.Cancel(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to cancel job", "job_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (h *Handlers) listProfiles(w http.ResponseWriter, r *http.Request) {
	type profileView struct {
		Name        string `json:"name"`
		Label       string `json:"label"`
		Description string `json:"description"`
	}

	var out []profileView
	for _, name := range h.Profiles.Names() {
		p, _ := h.Profiles.Get(name)
		out = append(out, profileView{Name: p.Name, Label: p.Label, Description: p.Describe()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
}

func (h *Handlers) serveFiles(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/files/")
	if key == "" {
		http.Error(w, "file path required", http.StatusBadRequest)
		return
	}

	rc, contentType, err := h.Storage.GetFile(r.Context(), key)
	if err != nil {
		switch {
		case common.IsNotFound(err):
			http.Error(w, "file not found", http.StatusNotFound)
		case common.IsValidation(err):
			http.Error(w, "invalid file path", http.StatusBadRequest)
		default:
			slog.Error("failed to read file", "key", key, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("failed to stream file", "key", key, "error", err)
	}
}

func toResponse(j *job.Job) AnalysisResponse {
	resp := AnalysisResponse{
		ID:        j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Result:    j.Result,
		Context:   j.Context(),
		CreatedAt: j.CreatedAt.UTC().Format(timeFormat),
	}
	if j.Error != "" {
		resp.Error = &j.Error
	}
	if j.StartedAt != nil {
		s := j.StartedAt.UTC().Format(timeFormat)
		resp.StartedAt = &s
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.UTC().Format(timeFormat)
		resp.CompletedAt = &s
	}
	return resp
}

func writeValidationError(w http.ResponseWriter, errs validation.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "validation failed",
		"details": errs,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
