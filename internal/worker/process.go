package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"shortforge/internal/logger"
	"shortforge/internal/media"
	"shortforge/internal/providers"
	"shortforge/internal/script"
	"shortforge/internal/store"
	"shortforge/internal/workspace"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage names used for logging, tracing and failure metrics.
const (
	StagePrepare   = "prepare"
	StageScript    = "script"
	StageVoice     = "voice"
	StageImages    = "images"
	StageSubtitles = "subtitles"
	StageRender    = "render"
)

// Progress checkpoints on the job's 0-100 scale.
const (
	progressStarted   = 5
	progressScript    = 15
	progressVoice     = 25
	progressImagesEnd = 60
	progressSubtitles = 65
	progressDone      = 100
)

// renderPlan maps media pipeline stages onto the job scale.
var renderPlan = media.ProgressPlan{ClipsFrom: 65, ClipsTo: 75, Concat: 80, Mux: 90, Burn: 100}

// Assembler turns scene images, narration and subtitles into the final video.
type Assembler interface {
	Run(ctx context.Context, req media.Request) error
}

// Providers groups the external generation services a job needs.
type Providers struct {
	Script providers.ScriptProvider
	Voice  providers.VoiceProvider
	Image  providers.ImageProvider
}

// Orchestrator runs the stage sequence of a single job and folds each
// stage's result into the job record.
type Orchestrator struct {
	store     store.JobStore
	providers Providers
	assembler Assembler
	layout    workspace.Layout
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewOrchestrator wires the orchestrator. metrics may be nil.
func NewOrchestrator(js store.JobStore, p Providers, assembler Assembler, layout workspace.Layout, logger *slog.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     js,
		providers: p,
		assembler: assembler,
		layout:    layout,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("shortforge/worker"),
		now:       time.Now,
	}
}

// stageError remembers which stage produced err.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Process runs every stage for jobID. Any failure marks the job failed. The
// job's working directory is removed on both outcomes. The returned error is
// informational; the job record already reflects it.
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			o.logger.Warn("Job disappeared before processing", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	ctx = logger.WithJobID(ctx, jobID)
	log := logger.FromContext(ctx, o.logger)
	defer o.cleanup(log, jobID)

	if err := o.run(ctx, log, job); err != nil {
		o.fail(ctx, log, jobID, err)
		return err
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, job *store.Job) error {
	id := job.ID
	jobDir := o.layout.JobDir(id)
	outputPath := o.layout.OutputPath(id)

	o.update(ctx, log, id, store.JobUpdate{
		Status:   statusPtr(store.JobStatusProcessing),
		Progress: intPtr(progressStarted),
	})
	o.addLog(ctx, log, id, "Starting processing...")

	if err := o.stage(ctx, StagePrepare, id, func(ctx context.Context) error {
		return o.layout.Ensure(id)
	}); err != nil {
		return err
	}

	var scenes []store.Scene
	o.addLog(ctx, log, id, "Generating script...")
	if err := o.stage(ctx, StageScript, id, func(ctx context.Context) error {
		text, err := o.providers.Script.GenerateScript(ctx, job.Topic, job.Duration)
		if err != nil {
			return err
		}
		scenes, err = script.Split(text, float64(job.Duration))
		if err != nil {
			return err
		}
		o.update(ctx, log, id, store.JobUpdate{
			Progress: intPtr(progressScript),
			Metadata: &store.Metadata{Script: text, Scenes: scenes},
		})
		return nil
	}); err != nil {
		return err
	}
	o.addLog(ctx, log, id, fmt.Sprintf("Script generated with %d scenes.", len(scenes)))

	var audioPath string
	o.addLog(ctx, log, id, "Generating voice narration...")
	if err := o.stage(ctx, StageVoice, id, func(ctx context.Context) error {
		texts := make([]string, len(scenes))
		for i, s := range scenes {
			texts[i] = s.Text
		}
		var err error
		audioPath, err = o.providers.Voice.Synthesize(ctx, strings.Join(texts, " "), filepath.Join(jobDir, "narration.mp3"))
		if err != nil {
			return err
		}
		o.update(ctx, log, id, store.JobUpdate{
			Progress: intPtr(progressVoice),
			Metadata: &store.Metadata{AudioPath: audioPath},
		})
		return nil
	}); err != nil {
		return err
	}
	o.addLog(ctx, log, id, "Voice narration generated.")

	o.addLog(ctx, log, id, "Generating images...")
	if err := o.stage(ctx, StageImages, id, func(ctx context.Context) error {
		imagePaths := make([]string, 0, len(scenes))
		for i := range scenes {
			dest := filepath.Join(jobDir, fmt.Sprintf("scene_%d.png", scenes[i].Index))
			path, err := o.providers.Image.GenerateImage(ctx, scenes[i].ImagePrompt, dest)
			if err != nil {
				return fmt.Errorf("image for scene %d: %w", scenes[i].Index, err)
			}
			scenes[i].ImagePath = path
			imagePaths = append(imagePaths, path)

			progress := progressVoice + (progressImagesEnd-progressVoice)*(i+1)/len(scenes)
			o.update(ctx, log, id, store.JobUpdate{
				Progress: intPtr(progress),
				Metadata: &store.Metadata{
					Scenes:     append([]store.Scene(nil), scenes...),
					ImagePaths: append([]string(nil), imagePaths...),
				},
			})
			o.addLog(ctx, log, id, fmt.Sprintf("Image %d/%d generated.", i+1, len(scenes)))
		}
		return nil
	}); err != nil {
		return err
	}

	var subtitlePath string
	o.addLog(ctx, log, id, "Generating subtitles...")
	if err := o.stage(ctx, StageSubtitles, id, func(ctx context.Context) error {
		var err error
		subtitlePath, err = media.WriteSubtitles(jobDir, scenes)
		if err != nil {
			return err
		}
		o.update(ctx, log, id, store.JobUpdate{
			Progress: intPtr(progressSubtitles),
			Metadata: &store.Metadata{SubtitlePath: subtitlePath},
		})
		return nil
	}); err != nil {
		return err
	}

	o.addLog(ctx, log, id, "Rendering final video (this might take a while)...")
	if err := o.stage(ctx, StageRender, id, func(ctx context.Context) error {
		plan := renderPlan
		return o.assembler.Run(ctx, media.Request{
			JobID:        id,
			Scenes:       scenes,
			AudioPath:    audioPath,
			SubtitlePath: subtitlePath,
			WorkDir:      jobDir,
			OutputPath:   outputPath,
			Plan:         &plan,
			Progress: media.ProgressFunc(func(p int) {
				o.update(ctx, log, id, store.JobUpdate{Progress: intPtr(p)})
			}),
		})
	}); err != nil {
		return err
	}

	if _, err := o.store.Get(ctx, id); errors.Is(err, store.ErrNotFound) {
		log.Warn("Job deleted while rendering, discarding video", "video_path", outputPath)
		if err := workspace.RemoveFile(outputPath); err != nil {
			log.Error("Failed to remove orphaned video", "video_path", outputPath, "error", err)
		}
		return nil
	}

	completedAt := o.now().UTC()
	o.update(ctx, log, id, store.JobUpdate{
		Status:      statusPtr(store.JobStatusCompleted),
		Progress:    intPtr(progressDone),
		CompletedAt: &completedAt,
		VideoPath:   &outputPath,
	})
	o.addLog(ctx, log, id, "Job completed successfully!")
	o.metrics.completed(ctx)
	log.Info("Job completed", "video_path", outputPath)
	return nil
}

// stage runs fn inside a span and tags any error with the stage name.
func (o *Orchestrator) stage(ctx context.Context, name, jobID string, fn func(ctx context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "stage."+name,
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("stage", name),
		),
	)
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	o.metrics.observeStage(ctx, name, started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		return &stageError{stage: name, err: err}
	}
	return nil
}

// fail moves the job to failed with a message derived from err.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, jobID string, err error) {
	msg := err.Error()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg = "job timed out: " + msg
	}

	stage := "unknown"
	var se *stageError
	if errors.As(err, &se) {
		stage = se.stage
	}

	log.Error("Job failed", "stage", stage, "error", msg)

	// Record the failure even if the job context is already done.
	wctx := context.WithoutCancel(ctx)
	o.update(wctx, log, jobID, store.JobUpdate{
		Status: statusPtr(store.JobStatusFailed),
		Error:  &msg,
	})
	o.addLog(wctx, log, jobID, "ERROR: "+msg)
	o.metrics.failed(wctx, stage)
}

func (o *Orchestrator) cleanup(log *slog.Logger, jobID string) {
	if err := o.layout.Cleanup(jobID); err != nil {
		log.Error("Failed to clean up job files", "error", err)
	}
}

// update and addLog log store errors instead of failing the job; the record
// may have been deleted concurrently.
func (o *Orchestrator) update(ctx context.Context, log *slog.Logger, id string, u store.JobUpdate) {
	if err := o.store.Update(ctx, id, u); err != nil {
		log.Error("Failed to update job", "error", err)
	}
}

func (o *Orchestrator) addLog(ctx context.Context, log *slog.Logger, id, text string) {
	if err := o.store.AddLog(ctx, id, text); err != nil {
		log.Error("Failed to append job log", "error", err)
	}
}

func statusPtr(s store.JobStatus) *store.JobStatus { return &s }
func intPtr(i int) *int                            { return &i }
