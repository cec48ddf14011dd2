package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"plyconv/internal/domain"
	"plyconv/internal/export"
	"plyconv/pkg/zip"
)

type conversionDTO struct {
	ID         string            `json:"id"`
	SourceFile string            `json:"source_file"`
	State      string            `json:"state"`
	Progress   int               `json:"progress"`
	Message    string            `json:"message"`
	Smoothing  string            `json:"smoothing"`
	Formats    []string          `json:"formats"`
	Files      map[string]string `json:"files,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func toConversionDTO(job *domain.ConversionJob) conversionDTO {
	dto := conversionDTO{
		ID:         job.ID,
		SourceFile: job.SourceFile,
		State:      string(job.State),
		Progress:   job.Progress,
		Message:    job.Message,
		Smoothing:  string(job.Smoothing),
		Error:      job.ErrorMessage,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
	for _, f := range job.Formats {
		dto.Formats = append(dto.Formats, string(f))
	}
	if len(job.Artifacts) > 0 {
		dto.Files = make(map[string]string, len(job.Artifacts))
		for f := range job.Artifacts {
			dto.Files[string(f)] = fmt.Sprintf("/v1/conversions/%s/files/%s", job.ID, f)
		}
	}
	return dto
}

// CreateConversion accepts a multipart upload and starts an async conversion.
func (a *App) CreateConversion(w http.ResponseWriter, r *http.Request) {
	// The multipart envelope adds a little on top of the payload cap.
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("upload exceeds %d bytes", a.MaxUploadBytes))
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".ply" {
		a.error(w, http.StatusBadRequest, "bad_request", "only .ply files are accepted")
		return
	}
	if header.Size > a.MaxUploadBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large",
			fmt.Sprintf("upload exceeds %d bytes", a.MaxUploadBytes))
		return
	}

	smoothing := domain.DefaultSmoothing
	if v := r.FormValue("smoothing"); v != "" {
		smoothing = domain.SmoothingLevel(strings.ToLower(v))
	}

	formats := domain.OutputFormats
	if v := r.FormValue("formats"); v != "" {
		formats = nil
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
				formats = append(formats, domain.OutputFormat(part))
			}
		}
	}

	id, err := a.Coordinator.Submit(r.Context(), header.Filename, file, smoothing, formats)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("failed to accept upload")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}

	job, err := a.Coordinator.Status(id)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "job vanished after submit")
		return
	}
	a.json(w, http.StatusAccepted, toConversionDTO(job))
}

// GetConversion reports the state and progress of one job.
func (a *App) GetConversion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Coordinator.Status(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "conversion not found")
		return
	}
	a.json(w, http.StatusOK, toConversionDTO(job))
}

// DownloadArtifact streams one generated file.
func (a *App) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := domain.OutputFormat(strings.ToLower(chi.URLParam(r, "format")))
	if !format.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown output format")
		return
	}

	key, err := a.Coordinator.Artifact(id, format)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "file not available")
		return
	}

	rc, size, err := a.Store.Open(r.Context(), key)
	if err != nil {
		a.Logger.Error().Err(err).Str("key", key).Msg("failed to open artifact")
		a.error(w, http.StatusInternalServerError, "internal", "failed to open file")
		return
	}
	defer rc.Close()

	name := fmt.Sprintf("%s.%s", id, export.FileExtension(format))
	w.Header().Set("Content-Type", export.MIMEType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	_, _ = io.Copy(w, rc)
}

// DownloadArchive bundles all generated files of a completed job into a zip.
func (a *App) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Coordinator.Status(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "conversion not found")
		return
	}
	if job.State != domain.JobStateCompleted {
		a.error(w, http.StatusConflict, "not_ready", "conversion has not completed")
		return
	}

	entries := make([]zip.Entry, 0, len(job.Artifacts))
	for format, key := range job.Artifacts {
		data, err := a.Store.Read(r.Context(), key)
		if err != nil {
			a.Logger.Error().Err(err).Str("key", key).Msg("failed to read artifact")
			a.error(w, http.StatusInternalServerError, "internal", "failed to read files")
			return
		}
		entries = append(entries, zip.Entry{
			Name: fmt.Sprintf("%s.%s", id, export.FileExtension(format)),
			Data: data,
		})
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", id).Msg("failed to build archive")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	_, _ = w.Write(archive)
}

// DeleteConversion removes a job and its files. Deleting an unknown id
// succeeds so retried deletes stay safe.
func (a *App) DeleteConversion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Coordinator.Cleanup(id); err != nil {
		a.Logger.Error().Err(err).Str("job_id", id).Msg("cleanup failed")
		a.error(w, http.StatusInternalServerError, "internal", "cleanup failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
