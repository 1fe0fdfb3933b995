package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/aliskhannn/pixor/internal/model"
	"github.com/aliskhannn/pixor/pkg/imagespec"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	return f.data, f.err
}

type fakeStorage struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) SaveRendered(_ context.Context, name, _ string, data []byte) (string, error) {
	path := "rendered/" + name
	s.objects[path] = data
	return path, nil
}

func (s *fakeStorage) Load(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := s.objects[path]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) Delete(_ context.Context, path string) error {
	s.deleted = append(s.deleted, path)
	delete(s.objects, path)
	return nil
}

type fakeProducer struct {
	produced []model.RenderJob
	err      error
}

func (p *fakeProducer) Produce(_ context.Context, j model.RenderJob) error {
	if p.err != nil {
		return p.err
	}
	p.produced = append(p.produced, j)
	return nil
}

type fakeRepo struct {
	jobs map[uuid.UUID]model.RenderJob
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[uuid.UUID]model.RenderJob)}
}

func (r *fakeRepo) SaveJob(_ context.Context, j model.RenderJob) (uuid.UUID, error) {
	id := uuid.New()
	j.ID = id
	r.jobs[id] = j
	return id, nil
}

func (r *fakeRepo) GetJob(_ context.Context, id uuid.UUID) (model.RenderJob, error) {
	j, ok := r.jobs[id]
	if !ok {
		return model.RenderJob{}, errors.New("not found")
	}
	return j, nil
}

func (r *fakeRepo) UpdateJob(_ context.Context, id uuid.UUID, resultPath, status string) error {
	j, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	j.ResultPath = resultPath
	j.Status = status
	r.jobs[id] = j
	return nil
}

func (r *fakeRepo) DeleteJob(_ context.Context, id uuid.UUID) error {
	delete(r.jobs, id)
	return nil
}

func sourcePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("failed to encode source image: %v", err)
	}

	return buf.Bytes()
}

func newTestService(t *testing.T, src []byte) (*Service, *fakeStorage, *fakeProducer, *fakeRepo) {
	t.Helper()

	storage := newFakeStorage()
	prod := &fakeProducer{}
	repo := newFakeRepo()
	svc := NewService(&fakeFetcher{data: src}, storage, prod, repo)

	return svc, storage, prod, repo
}

func TestRenderSync(t *testing.T) {
	svc, _, _, _ := newTestService(t, sourcePNG(t, 1200, 800))

	token := imagespec.Encode(imagespec.New(
		imagespec.NewResize(600, 600, imagespec.SampleFilterCatmullRom),
		imagespec.NewFilter(imagespec.FilterMarine),
	))

	out, contentType, err := svc.Render(context.Background(), token, "http://example.com/cat.png", "jpeg")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if contentType != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", contentType)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a decodable image: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 600 {
		t.Errorf("rendered %dx%d, want 600x600", b.Dx(), b.Dy())
	}
}

func TestRenderRejectsBadToken(t *testing.T) {
	svc, _, _, _ := newTestService(t, sourcePNG(t, 10, 10))

	_, _, err := svc.Render(context.Background(), "not a valid token!!", "http://example.com/x.png", "")
	if !errors.Is(err, imagespec.ErrInvalidBase64) {
		t.Errorf("Render = %v, want ErrInvalidBase64", err)
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	svc, _, _, _ := newTestService(t, sourcePNG(t, 10, 10))

	token := imagespec.Encode(imagespec.New())
	_, _, err := svc.Render(context.Background(), token, "http://example.com/x.png", "webp")
	if !errors.Is(err, ErrUnknownOutputFormat) {
		t.Errorf("Render = %v, want ErrUnknownOutputFormat", err)
	}
}

func TestCreateJobValidatesSpec(t *testing.T) {
	svc, _, prod, _ := newTestService(t, nil)

	_, err := svc.CreateJob(context.Background(), model.RenderJob{
		SourceURL: "http://example.com/x.png",
		Spec:      "!!!",
	})
	if !errors.Is(err, imagespec.ErrInvalidBase64) {
		t.Errorf("CreateJob = %v, want ErrInvalidBase64", err)
	}
	if len(prod.produced) != 0 {
		t.Error("invalid job was enqueued")
	}
}

func TestCreateJobEnqueuesPending(t *testing.T) {
	svc, _, prod, repo := newTestService(t, nil)

	token := imagespec.Encode(imagespec.New(imagespec.NewFlipH()))
	id, err := svc.CreateJob(context.Background(), model.RenderJob{
		SourceURL: "http://example.com/x.png",
		Spec:      token,
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	stored := repo.jobs[id]
	if stored.Status != model.StatusPending {
		t.Errorf("stored status = %q, want pending", stored.Status)
	}
	if stored.Format != DefaultFormat {
		t.Errorf("stored format = %q, want %q", stored.Format, DefaultFormat)
	}

	if len(prod.produced) != 1 {
		t.Fatalf("produced %d messages, want 1", len(prod.produced))
	}
	if prod.produced[0].ID != id {
		t.Errorf("produced job id = %s, want %s", prod.produced[0].ID, id)
	}
}

func TestProcessJobStoresResult(t *testing.T) {
	svc, storage, _, repo := newTestService(t, sourcePNG(t, 100, 80))

	token := imagespec.Encode(imagespec.New(
		imagespec.NewResize(50, 40, imagespec.SampleFilterTriangle),
	))

	id, _ := repo.SaveJob(context.Background(), model.RenderJob{
		SourceURL: "http://example.com/x.png",
		Spec:      token,
		Format:    "png",
		Status:    model.StatusPending,
	})

	j := repo.jobs[id]
	if err := svc.ProcessJob(context.Background(), j); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}

	done := repo.jobs[id]
	if done.Status != model.StatusProcessed {
		t.Errorf("status = %q, want processed", done.Status)
	}
	if done.ResultPath == "" {
		t.Fatal("result path is empty")
	}
	if _, ok := storage.objects[done.ResultPath]; !ok {
		t.Errorf("no stored object at %q", done.ResultPath)
	}

	got, reader, err := svc.JobResult(context.Background(), id)
	if err != nil {
		t.Fatalf("JobResult failed: %v", err)
	}
	defer reader.Close()

	if got.ID != id {
		t.Errorf("JobResult id = %s, want %s", got.ID, id)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("failed to read result: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not a decodable image: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 40 {
		t.Errorf("result is %dx%d, want 50x40", b.Dx(), b.Dy())
	}
}

func TestProcessJobMarksFailed(t *testing.T) {
	// Fetcher returns garbage, so the engine rejects the source.
	svc, _, _, repo := newTestService(t, []byte("not an image"))

	token := imagespec.Encode(imagespec.New(imagespec.NewFlipV()))
	id, _ := repo.SaveJob(context.Background(), model.RenderJob{
		SourceURL: "http://example.com/x.png",
		Spec:      token,
		Format:    "jpeg",
		Status:    model.StatusPending,
	})

	if err := svc.ProcessJob(context.Background(), repo.jobs[id]); err == nil {
		t.Fatal("ProcessJob succeeded on undecodable source")
	}

	if got := repo.jobs[id].Status; got != model.StatusFailed {
		t.Errorf("status = %q, want failed", got)
	}
}

func TestJobResultRequiresProcessedStatus(t *testing.T) {
	svc, _, _, repo := newTestService(t, nil)

	id, _ := repo.SaveJob(context.Background(), model.RenderJob{
		SourceURL: "http://example.com/x.png",
		Spec:      imagespec.Encode(imagespec.New()),
		Status:    model.StatusPending,
	})

	if _, _, err := svc.JobResult(context.Background(), id); err == nil {
		t.Error("JobResult succeeded for a pending job")
	}
}

func TestDeleteJobRemovesStoredOutput(t *testing.T) {
	svc, storage, _, repo := newTestService(t, sourcePNG(t, 20, 20))

	token := imagespec.Encode(imagespec.New())
	id, _ := repo.SaveJob(context.Background(), model.RenderJob{
		SourceURL: "http://example.com/x.png",
		Spec:      token,
		Format:    "png",
		Status:    model.StatusPending,
	})
	if err := svc.ProcessJob(context.Background(), repo.jobs[id]); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}

	resultPath := repo.jobs[id].ResultPath
	if err := svc.DeleteJob(context.Background(), id); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}

	if _, ok := repo.jobs[id]; ok {
		t.Error("job record still present after delete")
	}
	if _, ok := storage.objects[resultPath]; ok {
		t.Error("stored output still present after delete")
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"jpeg", false},
		{"jpg", false},
		{"PNG", false},
		{"gif", false},
		{"webp", true},
		{"tiff", true},
	}

	for _, tt := range tests {
		_, err := OutputFormat(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("OutputFormat(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
