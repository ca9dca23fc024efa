package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"productsnap/internal/domain"
	"productsnap/internal/jobs"
)

type createJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CreateJob accepts a multipart upload and queues it.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	maxSize := a.MaxUploadSize
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}
	if int64(len(data)) > maxSize {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("file exceeds %d bytes", maxSize))
		return
	}

	job, err := a.Jobs.Create(r.Context(), jobs.CreateInput{
		Actor:          a.actor(r),
		Filename:       header.Filename,
		Data:           data,
		Mode:           r.FormValue("mode"),
		PromptOverride: r.FormValue("prompt_override"),
		SubOptions: domain.SubOptions{
			ShadowOption:     r.FormValue("shadow_option"),
			ModelGender:      r.FormValue("model_gender"),
			SceneEnvironment: r.FormValue("scene_environment"),
		},
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, createJobResponse{JobID: job.ID, Status: string(job.Status)})
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := a.Jobs.List(r.Context(), a.currentUserID(r), limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	views := make([]jobs.View, 0, len(list))
	for _, job := range list {
		views = append(views, a.Jobs.Present(r.Context(), job))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": views, "limit": limit, "offset": offset})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.Jobs.Present(r.Context(), *job))
}

func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := a.Jobs.Cancel(r.Context(), a.actor(r), jobID); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, createJobResponse{JobID: jobID, Status: string(domain.JobStatusCancelled)})
}

func (a *App) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := a.Jobs.Delete(r.Context(), a.actor(r), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadJob streams a zip of the job's results.
func (a *App) DownloadJob(w http.ResponseWriter, r *http.Request) {
	data, name, err := a.Jobs.Archive(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotCompleted) {
			a.error(w, http.StatusConflict, "conflict", "job is not completed yet")
			return
		}
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
