package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"shortforge/internal/store"
	"shortforge/internal/worker/runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage names a step of the assembly pipeline.
type Stage string

const (
	StageClips     Stage = "clips"
	StageConcat    Stage = "concat"
	StageMux       Stage = "mux"
	StageSubtitles Stage = "subtitles"
)

// ErrMissingImage is returned when a scene reaches assembly without an image.
var ErrMissingImage = errors.New("scene missing image path")

// PipelineFailure reports the stage that failed, its cause and the tail of
// the encoder output.
type PipelineFailure struct {
	Stage  Stage
	Err    error
	Output string
}

func (f *PipelineFailure) Error() string {
	msg := fmt.Sprintf("video generation failed at %s stage: %v", f.Stage, f.Err)
	if f.Output != "" {
		msg += ": " + lastLine(f.Output)
	}
	return msg
}

func (f *PipelineFailure) Unwrap() error {
	return f.Err
}

// ProgressSink receives percent-complete values on the job's 0-100 scale.
type ProgressSink interface {
	Report(percent int)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(percent int)

func (f ProgressFunc) Report(percent int) { f(percent) }

// ProgressPlan maps pipeline stages onto the caller's progress scale. The
// clip stage moves linearly from ClipsFrom to ClipsTo.
type ProgressPlan struct {
	ClipsFrom int
	ClipsTo   int
	Concat    int
	Mux       int
	Burn      int
}

// DefaultProgressPlan is the plan used when a request carries none.
var DefaultProgressPlan = ProgressPlan{ClipsFrom: 65, ClipsTo: 75, Concat: 80, Mux: 90, Burn: 100}

// monotonic drops reports lower than one already delivered.
type monotonic struct {
	sink ProgressSink
	last int
}

func (m *monotonic) Report(percent int) {
	if m.sink == nil || percent <= m.last {
		return
	}
	m.last = percent
	m.sink.Report(percent)
}

// Request is one assembly run.
type Request struct {
	JobID        string
	Scenes       []store.Scene
	AudioPath    string
	SubtitlePath string
	// WorkDir holds intermediate clips.
	WorkDir    string
	OutputPath string
	Progress   ProgressSink
	Plan       *ProgressPlan
}

// PipelineConfig holds encoder settings.
type PipelineConfig struct {
	// Binary is the encoder executable. Defaults to "ffmpeg".
	Binary string
	// Mounts are the directories the encoder must be able to reach.
	Mounts []string
	// OutputTail is how many trailing output lines are kept for diagnostics.
	OutputTail int
}

// Pipeline assembles a vertical video from scene images, narration audio and
// a subtitle track by driving the encoder through a runtime.
type Pipeline struct {
	runtime runtime.Runtime
	config  PipelineConfig
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewPipeline creates a pipeline backed by rt.
func NewPipeline(rt runtime.Runtime, config PipelineConfig, logger *slog.Logger) *Pipeline {
	if config.Binary == "" {
		config.Binary = "ffmpeg"
	}
	if config.OutputTail <= 0 {
		config.OutputTail = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		runtime: rt,
		config:  config,
		logger:  logger,
		tracer:  otel.Tracer("shortforge/media"),
	}
}

// Run executes clip synthesis, concatenation, audio mux and subtitle burn-in
// in order. The first failure aborts the rest; intermediate files are left
// in WorkDir for the caller to purge.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	plan := DefaultProgressPlan
	if req.Plan != nil {
		plan = *req.Plan
	}
	progress := &monotonic{sink: req.Progress}

	for _, scene := range req.Scenes {
		if scene.ImagePath == "" {
			return &PipelineFailure{
				Stage: StageClips,
				Err:   fmt.Errorf("scene %d: %w", scene.Index, ErrMissingImage),
			}
		}
	}

	p.logger.Info("Starting video generation pipeline", "job_id", req.JobID, "scenes", len(req.Scenes))

	segments := make([]string, 0, len(req.Scenes))
	for i, scene := range req.Scenes {
		segment := filepath.Join(req.WorkDir, fmt.Sprintf("segment_%d.mp4", i))
		if err := p.encode(ctx, req, StageClips, ClipArgs(scene.ImagePath, scene.Duration, segment)); err != nil {
			return err
		}
		segments = append(segments, segment)

		progress.Report(plan.ClipsFrom + (plan.ClipsTo-plan.ClipsFrom)*(i+1)/len(req.Scenes))
	}

	concatenated := filepath.Join(req.WorkDir, "concatenated.mp4")
	listPath, err := WriteConcatList(req.WorkDir, segments)
	if err != nil {
		return &PipelineFailure{Stage: StageConcat, Err: err}
	}
	if err := p.encode(ctx, req, StageConcat, ConcatArgs(listPath, concatenated)); err != nil {
		return err
	}
	progress.Report(plan.Concat)

	withAudio := filepath.Join(req.WorkDir, "with_audio.mp4")
	if err := p.encode(ctx, req, StageMux, MuxArgs(concatenated, req.AudioPath, withAudio)); err != nil {
		return err
	}
	progress.Report(plan.Mux)

	if err := p.encode(ctx, req, StageSubtitles, BurnArgs(withAudio, req.SubtitlePath, req.OutputPath)); err != nil {
		return err
	}
	progress.Report(plan.Burn)

	p.logger.Info("Video generation complete", "job_id", req.JobID, "output", req.OutputPath)
	return nil
}

// encode runs one encoder invocation and converts any failure into a
// PipelineFailure for stage.
func (p *Pipeline) encode(ctx context.Context, req Request, stage Stage, args []string) error {
	ctx, span := p.tracer.Start(ctx, "encode",
		trace.WithAttributes(
			attribute.String("job.id", req.JobID),
			attribute.String("media.stage", string(stage)),
		),
	)
	defer span.End()

	started := time.Now()
	command := append([]string{p.config.Binary}, args...)

	handle, err := p.runtime.Start(ctx, runtime.StartOptions{
		Command: command,
		WorkDir: req.WorkDir,
		Mounts:  p.config.Mounts,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start failed")
		return &PipelineFailure{Stage: stage, Err: err}
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := handle.Stop(stopCtx); err != nil {
			p.logger.Warn("Failed to stop encoder", "job_id", req.JobID, "stage", stage, "error", err)
		}
	}()

	tail := newTailBuffer(p.config.OutputTail)
	var wg sync.WaitGroup
	if rc, err := handle.StreamLogs(ctx); err != nil {
		p.logger.Warn("Failed to get encoder output", "job_id", req.JobID, "stage", stage, "error", err)
	} else if rc != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer rc.Close()
			scanner := bufio.NewScanner(rc)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				tail.add(scanner.Text())
			}
			io.Copy(io.Discard, rc)
		}()
	}

	result, err := handle.Wait(ctx)
	wg.Wait()

	output := tail.String()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "wait failed")
		return &PipelineFailure{Stage: stage, Err: err, Output: output}
	}

	span.SetAttributes(attribute.Int("exit_code", result.ExitCode))
	if result.ExitCode != 0 {
		cause := result.Error
		if cause == nil {
			cause = fmt.Errorf("exit code %d", result.ExitCode)
		}
		span.RecordError(cause)
		span.SetStatus(codes.Error, "encoder failed")
		p.logger.Error("Encoder failed", "job_id", req.JobID, "stage", stage, "exit_code", result.ExitCode)
		return &PipelineFailure{Stage: stage, Err: cause, Output: output}
	}

	p.logger.Debug("Encoder finished", "job_id", req.JobID, "stage", stage, "duration", time.Since(started))
	return nil
}

// ClipArgs holds image for seconds as a 1080x1920 30fps H.264 clip.
func ClipArgs(image string, seconds float64, output string) []string {
	d := formatSeconds(seconds)
	return []string{
		"-y",
		"-loop", "1",
		"-t", d,
		"-i", image,
		"-vf", "scale=1080:1920:force_original_aspect_ratio=decrease,pad=1080:1920:(ow-iw)/2:(oh-ih)/2",
		"-c:v", "libx264",
		"-t", d,
		"-pix_fmt", "yuv420p",
		"-r", "30",
		output,
	}
}

// WriteConcatList writes the concat demuxer list for segments into dir.
func WriteConcatList(dir string, segments []string) (string, error) {
	var b strings.Builder
	for i, s := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "file '%s'", filepath.Base(s))
	}

	path := filepath.Join(dir, "concat.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}
	return path, nil
}

// ConcatArgs joins the listed clips without re-encoding.
func ConcatArgs(list, output string) []string {
	return []string{"-y", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", output}
}

// MuxArgs adds the narration track, trimming to the shorter input.
func MuxArgs(video, audio, output string) []string {
	return []string{"-y", "-i", video, "-i", audio, "-c:v", "copy", "-c:a", "aac", "-shortest", output}
}

// SubtitleStyle is the force_style applied when burning subtitles.
const SubtitleStyle = "Alignment=2,FontSize=20,Bold=1,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,Outline=2,Shadow=1"

// BurnArgs renders the subtitle file into the video frames.
func BurnArgs(video, subtitles, output string) []string {
	filter := fmt.Sprintf("subtitles='%s':force_style='%s'", escapeFilterPath(subtitles), SubtitleStyle)
	return []string{"-y", "-i", video, "-vf", filter, "-c:a", "copy", output}
}

// escapeFilterPath makes a path safe inside a filtergraph argument.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.ReplaceAll(p, ":", `\:`)
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
