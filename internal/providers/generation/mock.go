package generation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// MockClient returns deterministic placeholder images without any network
// access. With Async set, CreateJob returns no images and the result only
// becomes available after PendingPolls status checks.
type MockClient struct {
	Images       int
	Size         int
	Async        bool
	PendingPolls int

	logger zerolog.Logger
	mu     sync.Mutex
	jobs   map[string]*mockJob
}

type mockJob struct {
	req   Request
	polls int
}

func NewMockClient(logger zerolog.Logger) *MockClient {
	return &MockClient{Images: 1, Size: 512, logger: logger, jobs: make(map[string]*mockJob)}
}

func (m *MockClient) CreateJob(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	backendID := "mock-" + deterministicSeed(req.JobID, req.InputLocator, req.Mode)
	if m.Async {
		m.mu.Lock()
		m.jobs[backendID] = &mockJob{req: req}
		m.mu.Unlock()
		return &Result{JobID: backendID, Status: "processing"}, nil
	}
	m.logger.Debug().Str("job_id", req.JobID).Str("mode", string(req.Mode)).Msg("generation: mock job completed synchronously")
	return &Result{JobID: backendID, Status: "completed", GeneratedImages: m.render(req)}, nil
}

func (m *MockClient) GetJobStatus(ctx context.Context, jobID string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if ok {
		job.polls++
	}
	m.mu.Unlock()
	if !ok {
		return &Result{JobID: jobID, Status: "failed", Error: "unknown job"}, nil
	}
	if job.polls <= m.PendingPolls {
		return &Result{JobID: jobID, Status: "processing"}, nil
	}
	return &Result{JobID: jobID, Status: "completed", GeneratedImages: m.render(job.req)}, nil
}

func (m *MockClient) render(req Request) []string {
	n := m.Images
	if n <= 0 {
		n = 1
	}
	images := make([]string, 0, n)
	for i := 0; i < n; i++ {
		seed := deterministicSeed(req.JobID, req.Mode, req.SubOptions.Encode(), req.PromptOverride, i)
		images = append(images, base64.StdEncoding.EncodeToString(renderSyntheticImage(m.Size, m.Size, seed)))
	}
	return images
}

func renderSyntheticImage(width, height int, seed string) []byte {
	if width <= 0 {
		width = 512
	}
	if height <= 0 {
		height = 512
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{colorFromSeed(seed, 0)}, image.Point{}, draw.Src)

	accent := colorFromSeed(seed, 1)
	stripe := max(16, height/12)
	for y := 0; y < height; y += stripe * 2 {
		draw.Draw(img, image.Rect(0, y, width, min(height, y+stripe)), &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

var _ Client = (*MockClient)(nil)
