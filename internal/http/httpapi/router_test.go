package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"productsnap/internal/adapter/memory"
	"productsnap/internal/admission"
	"productsnap/internal/domain"
	"productsnap/internal/http/handlers"
	"productsnap/internal/jobs"
	"productsnap/internal/ledger"
	"productsnap/internal/middleware"
	"productsnap/internal/queue"
	"productsnap/internal/storage"
)

const secret = "test-secret"

func newServer(t *testing.T, checks map[string]handlers.HealthCheck) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir, "http://localhost/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	limits := domain.PlanLimitTable{domain.PlanFree: {MaxJobs: 1, MaxConcurrent: 1, Period: domain.PeriodDay}}
	svc := jobs.NewService(jobs.Deps{
		Jobs:          memory.NewJobRepo(),
		Subscriptions: memory.NewSubscriptionRepo(),
		Audit:         memory.NewAuditRepo(),
		Admission:     admission.NewController(ledger.New(rdb), limits),
		Queue:         queue.New(rdb, ""),
		Store:         store,
		Logger:        zerolog.Nop(),
	})
	app := &handlers.App{Jobs: svc, Checks: checks, Logger: zerolog.Nop(), MaxUploadSize: 1 << 20}
	srv := httptest.NewServer(NewRouter(app, Options{JWTSecret: secret, RateLimitPerMin: 100, StaticDir: dir, Logger: zerolog.Nop()}))
	t.Cleanup(srv.Close)
	return srv
}

func authed(t *testing.T, req *http.Request) *http.Request {
	t.Helper()
	token, err := middleware.SignToken(secret, "user-1", "u@example.com", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func uploadRequest(t *testing.T, url, mode string) *http.Request {
	t.Helper()
	var img bytes.Buffer
	png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "bag.png")
	fw.Write(img.Bytes())
	mw.WriteField("mode", mode)
	mw.WriteField("scene_environment", "beach")
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, url+"/v1/jobs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return authed(t, req)
}

func do(t *testing.T, req *http.Request, out any) int {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv := newServer(t, nil)

	var created struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if code := do(t, uploadRequest(t, srv.URL, "lifestyle_scene"), &created); code != http.StatusAccepted {
		t.Fatalf("create status = %d", code)
	}
	if created.JobID == "" || created.Status != "queued" {
		t.Fatalf("created = %+v", created)
	}

	var view jobs.View
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/jobs/"+created.JobID, nil)
	if code := do(t, authed(t, req), &view); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if view.Mode != "lifestyle_scene" || view.InputURL == "" {
		t.Fatalf("view = %+v", view)
	}

	var denied map[string]string
	if code := do(t, uploadRequest(t, srv.URL, "studio_white"), &denied); code != http.StatusTooManyRequests {
		t.Fatalf("second create status = %d", code)
	}
	if denied["message"] != "Usage limit exceeded (1 jobs per day)" {
		t.Fatalf("denial = %v", denied)
	}

	var usage admission.Stats
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/usage", nil)
	if code := do(t, authed(t, req), &usage); code != http.StatusOK || usage.Used != 1 || usage.Remaining != 0 {
		t.Fatalf("usage = %d %+v", code, usage)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/jobs/"+created.JobID+"/download", nil)
	if code := do(t, authed(t, req), nil); code != http.StatusConflict {
		t.Fatalf("download of queued job = %d", code)
	}

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/v1/jobs/"+created.JobID+"/cancel", nil)
	if code := do(t, authed(t, req), nil); code != http.StatusOK {
		t.Fatalf("cancel status = %d", code)
	}
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/v1/jobs/"+created.JobID, nil)
	if code := do(t, authed(t, req), nil); code != http.StatusNoContent {
		t.Fatalf("delete status = %d", code)
	}
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/jobs/"+created.JobID, nil)
	if code := do(t, authed(t, req), nil); code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", code)
	}
}

func TestCreateRejectsInvalidMode(t *testing.T) {
	srv := newServer(t, nil)
	if code := do(t, uploadRequest(t, srv.URL, "cubism"), nil); code != http.StatusBadRequest {
		t.Fatalf("status = %d", code)
	}
}

func TestJobsRequireAuth(t *testing.T) {
	srv := newServer(t, nil)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/jobs", nil)
	if code := do(t, req, nil); code != http.StatusUnauthorized {
		t.Fatalf("status = %d", code)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t, map[string]handlers.HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	var body map[string]any
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/healthz", nil)
	if code := do(t, req, &body); code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", code, body)
	}

	down := newServer(t, map[string]handlers.HealthCheck{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	req, _ = http.NewRequest(http.MethodGet, down.URL+"/v1/healthz", nil)
	if code := do(t, req, &body); code != http.StatusServiceUnavailable || body["status"] != "degraded" {
		t.Fatalf("degraded health = %d %v", code, body)
	}
}
