package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"productsnap/internal/adapter/memory"
	"productsnap/internal/domain"
	"productsnap/internal/ledger"
	"productsnap/internal/notify"
	"productsnap/internal/providers/generation"
	"productsnap/internal/queue"
	"productsnap/internal/storage"
)

type fixture struct {
	mr      *miniredis.Miniredis
	queue   *queue.Queue
	ledger  *ledger.Ledger
	jobs    *memory.JobRepo
	users   *memory.UserRepo
	store   *storage.FileStore
	notices *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	f := &fixture{
		mr:      mr,
		queue:   queue.New(rdb, ""),
		ledger:  ledger.New(rdb),
		jobs:    memory.NewJobRepo(),
		users:   memory.NewUserRepo(),
		store:   store,
		notices: &recordingSink{accept: true},
	}
	f.users.Put(domain.User{ID: "u1", Email: "owner@example.com", FullName: "Owner"})
	return f
}

func (f *fixture) worker(gen generation.Client) *Worker {
	return New(Deps{
		Source:    f.queue,
		Jobs:      f.jobs,
		Users:     f.users,
		Counter:   f.ledger,
		Generator: gen,
		Store:     f.store,
		Notices:   f.notices,
		Logger:    zerolog.Nop(),
	}, Options{PollInterval: time.Millisecond, MaxWait: time.Second, IdleInterval: time.Millisecond})
}

func (f *fixture) seed(t *testing.T, id string) {
	t.Helper()
	f.jobs.Put(domain.Job{ID: id, UserID: "u1", Mode: domain.JobModeStudioWhite, Status: domain.JobStatusQueued, InputURL: "local://uploads/x/in.png"})
	if err := f.queue.Enqueue(context.Background(), id); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
}

type recordingSink struct {
	mu      sync.Mutex
	accept  bool
	notices []notify.Notice
}

func (r *recordingSink) Notify(n notify.Notice) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.accept
}

type failingClient struct{ err error }

func (c failingClient) CreateJob(context.Context, generation.Request) (*generation.Result, error) {
	return nil, c.err
}

func (c failingClient) GetJobStatus(context.Context, string) (*generation.Result, error) {
	return nil, c.err
}

type fixedClient struct{ res *generation.Result }

func (c fixedClient) CreateJob(context.Context, generation.Request) (*generation.Result, error) {
	return c.res, nil
}

func (c fixedClient) GetJobStatus(context.Context, string) (*generation.Result, error) {
	return c.res, nil
}

type panicClient struct{}

func (panicClient) CreateJob(context.Context, generation.Request) (*generation.Result, error) {
	panic("backend exploded")
}

func (panicClient) GetJobStatus(context.Context, string) (*generation.Result, error) {
	return nil, nil
}

func TestRunOnceCompletesJobWithMockBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "job-1")
	f.ledger.SetConcurrent(ctx, "u1", 0)

	processed, err := f.worker(generation.NewMockClient(zerolog.Nop())).RunOnce(ctx)
	if err != nil || !processed {
		t.Fatalf("RunOnce = %t, %v", processed, err)
	}

	job, err := f.jobs.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}
	if len(job.ResultURLs) != 1 || !strings.HasPrefix(job.ResultURLs[0], "local://results/") {
		t.Fatalf("results = %v", job.ResultURLs)
	}
	if !strings.HasPrefix(job.ThumbnailURL, "local://thumbnails/") {
		t.Fatalf("thumbnail = %q", job.ThumbnailURL)
	}
	if job.Progress != 100 || job.CompletedAt == nil || job.ProcessingTimeSeconds == nil {
		t.Fatalf("completion fields not set: %+v", job)
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	data, err := f.store.Download(ctx, job.ResultURLs[0])
	if err != nil || len(data) == 0 {
		t.Fatalf("result not stored: %d bytes, %v", len(data), err)
	}
	if n, _ := f.ledger.Concurrent(ctx, "u1"); n != 0 {
		t.Fatalf("concurrency = %d, want 0", n)
	}
	if len(f.notices.notices) != 1 || f.notices.notices[0].Email != "owner@example.com" {
		t.Fatalf("notices = %+v", f.notices.notices)
	}
}

func TestRunOncePollsAsyncBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "job-async")

	mock := generation.NewMockClient(zerolog.Nop())
	mock.Async = true
	mock.PendingPolls = 2
	mock.Images = 2
	if _, err := f.worker(mock).RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	job, _ := f.jobs.GetByID(ctx, "job-async")
	if job.Status != domain.JobStatusCompleted || len(job.ResultURLs) != 2 {
		t.Fatalf("job = %s with %d results", job.Status, len(job.ResultURLs))
	}
	if !strings.HasPrefix(job.BackendJobID, "mock-") {
		t.Fatalf("backend id = %q", job.BackendJobID)
	}
}

func TestRunOnceFailsJobOnGenerationError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "job-2")

	if _, err := f.worker(failingClient{err: errors.New("backend unavailable")}).RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	job, _ := f.jobs.GetByID(ctx, "job-2")
	if job.Status != domain.JobStatusFailed || job.ErrorMessage != "backend unavailable" {
		t.Fatalf("job = %s / %q", job.Status, job.ErrorMessage)
	}
	if job.CompletedAt == nil || len(job.ResultURLs) != 0 {
		t.Fatalf("failure fields wrong: %+v", job)
	}
	if n, _ := f.ledger.Concurrent(ctx, "u1"); n != 0 {
		t.Fatalf("concurrency = %d, want 0", n)
	}
	if len(f.notices.notices) != 0 {
		t.Fatal("failed job must not notify")
	}
}

func TestRunOnceFailsJobWithoutDecodableResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "job-3")

	client := fixedClient{res: &generation.Result{JobID: "b", Status: "completed", GeneratedImages: []string{"!!not base64!!"}}}
	if _, err := f.worker(client).RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	job, _ := f.jobs.GetByID(ctx, "job-3")
	if job.Status != domain.JobStatusFailed || job.ErrorMessage != domain.ErrNoResults.Error() {
		t.Fatalf("job = %s / %q", job.Status, job.ErrorMessage)
	}
}

func TestRunOnceFailsJobWhenBackendReportsFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "job-4")

	client := fixedClient{res: &generation.Result{JobID: "b", Status: "failed", Error: "nsfw"}}
	if _, err := f.worker(client).RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	job, _ := f.jobs.GetByID(ctx, "job-4")
	if job.Status != domain.JobStatusFailed || !strings.Contains(job.ErrorMessage, "nsfw") {
		t.Fatalf("job = %s / %q", job.Status, job.ErrorMessage)
	}
}

func TestRunOnceRecoversFromPanics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "job-5")

	if _, err := f.worker(panicClient{}).RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	job, _ := f.jobs.GetByID(ctx, "job-5")
	if job.Status != domain.JobStatusFailed || !strings.Contains(job.ErrorMessage, "backend exploded") {
		t.Fatalf("job = %s / %q", job.Status, job.ErrorMessage)
	}
	if n, _ := f.ledger.Concurrent(ctx, "u1"); n != 0 {
		t.Fatalf("concurrency = %d, want 0", n)
	}
}

func TestRunOnceSkipsMissingAndCancelledJobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.worker(generation.NewMockClient(zerolog.Nop()))

	f.queue.Enqueue(ctx, "ghost")
	if processed, err := w.RunOnce(ctx); err != nil || !processed {
		t.Fatalf("missing job: %t, %v", processed, err)
	}

	f.jobs.Put(domain.Job{ID: "orphan", UserID: "nobody", Mode: domain.JobModeStudioWhite, Status: domain.JobStatusQueued})
	f.queue.Enqueue(ctx, "orphan")
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("orphan job: %v", err)
	}
	if job, _ := f.jobs.GetByID(ctx, "orphan"); job.Status != domain.JobStatusQueued {
		t.Fatalf("orphan status = %s", job.Status)
	}

	f.jobs.Put(domain.Job{ID: "cancelled", UserID: "u1", Mode: domain.JobModeStudioWhite, Status: domain.JobStatusCancelled})
	f.queue.Enqueue(ctx, "cancelled")
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("cancelled job: %v", err)
	}
	if job, _ := f.jobs.GetByID(ctx, "cancelled"); job.Status != domain.JobStatusCancelled {
		t.Fatalf("cancelled status = %s", job.Status)
	}
	if n, _ := f.ledger.Concurrent(ctx, "u1"); n != 0 {
		t.Fatalf("concurrency = %d, want 0", n)
	}

	if processed, err := w.RunOnce(ctx); err != nil || processed {
		t.Fatalf("empty queue: %t, %v", processed, err)
	}
}

func TestRunOnceReturnsQueueErrors(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()
	if _, err := f.worker(generation.NewMockClient(zerolog.Nop())).RunOnce(context.Background()); err == nil {
		t.Fatal("expected dequeue error with redis down")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker(generation.NewMockClient(zerolog.Nop())).Run(ctx) }()

	f.seed(t, "job-run")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job, _ := f.jobs.GetByID(context.Background(), "job-run"); job.Status == domain.JobStatusCompleted {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if job, _ := f.jobs.GetByID(context.Background(), "job-run"); job.Status != domain.JobStatusCompleted {
		t.Fatalf("job-run status = %s", job.Status)
	}
}

func TestDecodeImage(t *testing.T) {
	if data, err := decodeImage("data:image/png;base64,aGk="); err != nil || string(data) != "hi" {
		t.Fatalf("data uri: %q, %v", data, err)
	}
	if _, err := decodeImage("  "); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

// gatedClient blocks in CreateJob until release is closed, then answers with
// res or err.
type gatedClient struct {
	started chan struct{}
	release chan struct{}
	res     *generation.Result
	err     error
}

func newGatedClient(res *generation.Result, err error) *gatedClient {
	return &gatedClient{started: make(chan struct{}), release: make(chan struct{}), res: res, err: err}
}

func (c *gatedClient) CreateJob(ctx context.Context, _ generation.Request) (*generation.Result, error) {
	close(c.started)
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.res, c.err
}

func (c *gatedClient) GetJobStatus(context.Context, string) (*generation.Result, error) {
	return c.res, c.err
}

func pngBase64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	var n int
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

// runReapedRace starts a slow attempt, reaps the job, lets a second worker
// finish it and only then lets the slow attempt return.
func runReapedRace(t *testing.T, f *fixture, slow *gatedClient) *domain.Job {
	t.Helper()
	ctx := context.Background()
	f.seed(t, "job-race")

	done := make(chan error, 1)
	go func() {
		_, err := f.worker(slow).RunOnce(ctx)
		done <- err
	}()
	<-slow.started

	r := NewReaper(f.jobs, f.queue, f.ledger, zerolog.Nop(), ReaperOptions{StaleAfter: 15 * time.Minute})
	r.now = func() time.Time { return time.Now().Add(time.Hour) }
	if n, err := r.SweepOnce(ctx); err != nil || n != 1 {
		t.Fatalf("SweepOnce = %d, %v", n, err)
	}
	if _, err := f.worker(generation.NewMockClient(zerolog.Nop())).RunOnce(ctx); err != nil {
		t.Fatalf("second worker: %v", err)
	}
	if job, _ := f.jobs.GetByID(ctx, "job-race"); job.Status != domain.JobStatusCompleted {
		t.Fatalf("second worker left status %s", job.Status)
	}

	close(slow.release)
	if err := <-done; err != nil {
		t.Fatalf("slow worker: %v", err)
	}
	job, err := f.jobs.GetByID(ctx, "job-race")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return job
}

func TestLateFailureDoesNotRegressCompletedJob(t *testing.T) {
	f := newFixture(t)
	job := runReapedRace(t, f, newGatedClient(nil, errors.New("slow backend gave up")))

	if job.Status != domain.JobStatusCompleted || len(job.ResultURLs) != 1 || job.ErrorMessage != "" {
		t.Fatalf("completed job changed: status=%s results=%d error=%q", job.Status, len(job.ResultURLs), job.ErrorMessage)
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("job invalid: %v", err)
	}
	if n, _ := f.ledger.Concurrent(context.Background(), "u1"); n != 0 {
		t.Fatalf("concurrency = %d, want 0", n)
	}
}

func TestLateSuccessKeepsFirstResultAndDropsItsOwn(t *testing.T) {
	f := newFixture(t)
	slow := newGatedClient(&generation.Result{JobID: "slow", Status: "completed", GeneratedImages: []string{pngBase64(t)}}, nil)
	job := runReapedRace(t, f, slow)

	if job.Status != domain.JobStatusCompleted || len(job.ResultURLs) != 1 {
		t.Fatalf("job = %s with %d results", job.Status, len(job.ResultURLs))
	}
	base := f.store.BasePath()
	if n := countFiles(t, filepath.Join(base, storage.FolderResults)); n != 1 {
		t.Fatalf("%d result files stored, want only the recorded one", n)
	}
	if n := countFiles(t, filepath.Join(base, storage.FolderThumbnails)); n != 1 {
		t.Fatalf("%d thumbnails stored, want 1", n)
	}
	if len(f.notices.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(f.notices.notices))
	}
}

func TestRunOnceSkipsUndecodableResultsButKeepsGoodOnes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "job-mixed")

	client := fixedClient{res: &generation.Result{JobID: "b", Status: "completed", GeneratedImages: []string{"!!not base64!!", pngBase64(t)}}}
	if _, err := f.worker(client).RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	job, _ := f.jobs.GetByID(ctx, "job-mixed")
	if job.Status != domain.JobStatusCompleted || len(job.ResultURLs) != 1 || job.ThumbnailURL == "" {
		t.Fatalf("job = %s results=%v thumb=%q (%s)", job.Status, job.ResultURLs, job.ThumbnailURL, job.ErrorMessage)
	}
}

func TestRejectedNoticeLeavesJobCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notices.accept = false
	f.seed(t, "job-quiet")

	if _, err := f.worker(generation.NewMockClient(zerolog.Nop())).RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(f.notices.notices) != 1 {
		t.Fatalf("notices = %d, want 1 attempt", len(f.notices.notices))
	}
	job, _ := f.jobs.GetByID(ctx, "job-quiet")
	if job.Status != domain.JobStatusCompleted || job.ErrorMessage != "" {
		t.Fatalf("job = %s / %q", job.Status, job.ErrorMessage)
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("job invalid: %v", err)
	}
}

func TestRunOnceFailsFastWithoutBackendJobID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "job-anon")

	client := fixedClient{res: &generation.Result{Status: "processing"}}
	start := time.Now()
	if _, err := f.worker(client).RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("worker polled for %s", elapsed)
	}
	job, _ := f.jobs.GetByID(ctx, "job-anon")
	if job.Status != domain.JobStatusFailed || !strings.Contains(job.ErrorMessage, "missing backend job id") {
		t.Fatalf("job = %s / %q", job.Status, job.ErrorMessage)
	}
}

// flakyJobs fails the first GetByID the way a dropped database connection would.
type flakyJobs struct {
	*memory.JobRepo
	failures int
}

func (f *flakyJobs) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	return f.JobRepo.GetByID(ctx, id)
}

func TestRunOncePutsJobBackAfterLoadError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "job-flaky")
	w := f.worker(generation.NewMockClient(zerolog.Nop()))
	w.Jobs = &flakyJobs{JobRepo: f.jobs, failures: 1}

	processed, err := w.RunOnce(ctx)
	if err == nil || !processed {
		t.Fatalf("RunOnce = %t, %v; want load error", processed, err)
	}
	if ids, _ := f.queue.Peek(ctx, 10); len(ids) != 1 || ids[0] != "job-flaky" {
		t.Fatalf("queue after load error = %v", ids)
	}

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if job, _ := f.jobs.GetByID(ctx, "job-flaky"); job.Status != domain.JobStatusCompleted {
		t.Fatalf("status after retry = %s", job.Status)
	}
}
