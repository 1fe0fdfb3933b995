package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/aliskhannn/pixor/internal/engine"
	"github.com/aliskhannn/pixor/internal/model"
	"github.com/aliskhannn/pixor/pkg/imagespec"
)

// ErrUnknownOutputFormat is returned when a requested output container is not
// one of jpeg, png or gif.
var ErrUnknownOutputFormat = errors.New("unknown output format")

// DefaultFormat is used when a request does not name an output container.
const DefaultFormat = "jpeg"

// fetcher supplies raw source image bytes.
type fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// fileStorage persists rendered outputs of asynchronous jobs.
type fileStorage interface {
	SaveRendered(ctx context.Context, name, contentType string, data []byte) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// producer enqueues render jobs into a message broker.
type producer interface {
	Produce(ctx context.Context, j model.RenderJob) error
}

// repository provides render job bookkeeping.
type repository interface {
	SaveJob(ctx context.Context, j model.RenderJob) (uuid.UUID, error)
	GetJob(ctx context.Context, id uuid.UUID) (model.RenderJob, error)
	UpdateJob(ctx context.Context, id uuid.UUID, resultPath, status string) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
}

// Service runs decoded pipelines through a fresh engine per request and
// manages asynchronous render jobs.
type Service struct {
	fetcher     fetcher
	fileStorage fileStorage
	producer    producer
	repo        repository
	engineOpts  []engine.Option
}

// NewService creates a Service. The engine options (dimension limit,
// watermark overlay) are applied to every engine the service builds.
func NewService(f fetcher, fs fileStorage, p producer, r repository, opts ...engine.Option) *Service {
	return &Service{
		fetcher:     f,
		fileStorage: fs,
		producer:    p,
		repo:        r,
		engineOpts:  opts,
	}
}

// formats maps request format names to imaging containers.
var formats = map[string]imaging.Format{
	"jpeg": imaging.JPEG,
	"jpg":  imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
}

var contentTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
}

// OutputFormat resolves a request format name, defaulting to jpeg.
func OutputFormat(name string) (imaging.Format, error) {
	if name == "" {
		name = DefaultFormat
	}

	f, ok := formats[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOutputFormat, name)
	}

	return f, nil
}

// Render runs the synchronous pipeline: decode the token, fetch the source,
// apply every operation in order, and finalize into the requested container.
// Returns the rendered bytes and their content type. A fresh engine is built
// and consumed per call; nothing is shared across requests.
func (s *Service) Render(ctx context.Context, token, sourceURL, formatName string) ([]byte, string, error) {
	format, err := OutputFormat(formatName)
	if err != nil {
		return nil, "", err
	}

	spec, err := imagespec.Decode(token)
	if err != nil {
		return nil, "", fmt.Errorf("render: %w", err)
	}

	src, err := s.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, "", fmt.Errorf("render: %w", err)
	}

	e, err := engine.NewImaging(src, s.engineOpts...)
	if err != nil {
		return nil, "", fmt.Errorf("render: %w", err)
	}

	if err := e.Apply(spec.Specs); err != nil {
		return nil, "", fmt.Errorf("render: %w", err)
	}

	out, err := e.Generate(format)
	if err != nil {
		return nil, "", fmt.Errorf("render: %w", err)
	}

	return out, contentTypes[format], nil
}

// CreateJob validates the job request, persists it as pending, and enqueues
// it for background processing. The job ID keys the Kafka message so retries
// of one job stay ordered.
func (s *Service) CreateJob(ctx context.Context, j model.RenderJob) (uuid.UUID, error) {
	if _, err := OutputFormat(j.Format); err != nil {
		return uuid.Nil, err
	}
	if _, err := imagespec.Decode(j.Spec); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	if j.Format == "" {
		j.Format = DefaultFormat
	}
	j.Status = model.StatusPending

	id, err := s.repo.SaveJob(ctx, j)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}
	j.ID = id

	if err := s.producer.Produce(ctx, j); err != nil {
		return uuid.Nil, fmt.Errorf("create job: failed to enqueue: %w", err)
	}

	return id, nil
}

// ProcessJob renders an enqueued job and stores the output. Failures mark
// the job failed; the original error is returned so the consumer can log it.
func (s *Service) ProcessJob(ctx context.Context, j model.RenderJob) error {
	out, contentType, err := s.Render(ctx, j.Spec, j.SourceURL, j.Format)
	if err != nil {
		if uerr := s.repo.UpdateJob(ctx, j.ID, "", model.StatusFailed); uerr != nil {
			return errors.Join(err, fmt.Errorf("process job: failed to mark job failed: %w", uerr))
		}

		return fmt.Errorf("process job: %w", err)
	}

	name := fmt.Sprintf("%s.%s", j.ID, extension(j.Format))
	dst, err := s.fileStorage.SaveRendered(ctx, name, contentType, out)
	if err != nil {
		return fmt.Errorf("process job: failed to save output: %w", err)
	}

	if err := s.repo.UpdateJob(ctx, j.ID, dst, model.StatusProcessed); err != nil {
		return fmt.Errorf("process job: failed to mark job processed: %w", err)
	}

	return nil
}

// GetJob returns job metadata by ID.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (model.RenderJob, error) {
	return s.repo.GetJob(ctx, id)
}

// JobResult streams the rendered output of a processed job.
func (s *Service) JobResult(ctx context.Context, id uuid.UUID) (model.RenderJob, io.ReadCloser, error) {
	j, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return model.RenderJob{}, nil, err
	}

	if j.Status != model.StatusProcessed || j.ResultPath == "" {
		return model.RenderJob{}, nil, fmt.Errorf("job result: job %s is %s", id, j.Status)
	}

	reader, err := s.fileStorage.Load(ctx, j.ResultPath)
	if err != nil {
		return model.RenderJob{}, nil, fmt.Errorf("job result: %w", err)
	}

	return j, reader, nil
}

// DeleteJob removes the job record and, when present, its stored output.
func (s *Service) DeleteJob(ctx context.Context, id uuid.UUID) error {
	j, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return err
	}

	if j.ResultPath != "" {
		if err := s.fileStorage.Delete(ctx, j.ResultPath); err != nil {
			return fmt.Errorf("delete job: failed to delete output: %w", err)
		}
	}

	return s.repo.DeleteJob(ctx, id)
}

func extension(format string) string {
	if format == "" {
		return DefaultFormat
	}
	if format == "jpg" {
		return "jpeg"
	}

	return strings.ToLower(format)
}

// WatermarkOverlay loads the configured watermark asset, returning nil when
// no path is configured so the engine treats watermark ops as no-ops.
func WatermarkOverlay(path string) (image.Image, error) {
	if path == "" {
		return nil, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load watermark overlay: %w", err)
	}

	return img, nil
}
