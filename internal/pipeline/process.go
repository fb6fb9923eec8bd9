package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bimschedule/internal"
	"bimschedule/internal/imaging"
	"bimschedule/internal/logger"
	"bimschedule/internal/storage"
	"bimschedule/internal/util"
)

// VisionClient is the part of the model client the schedule service needs.
type VisionClient interface {
	DescribeImage(ctx context.Context, img internal.ImageInput) (string, error)
}

type RunRecorder interface {
	InsertRun(run internal.RunRow) error
}

type Schedule struct {
	RunID        string                    `json:"runId"`
	Materials    []internal.MaterialRecord `json:"materials"`
	UsedFallback bool                      `json:"usedFallback"`
}

type ScheduleService struct {
	vision    VisionClient
	tables    *Tables
	imageOpts imaging.Options
	runs      RunRecorder
	log       *logger.Logger
}

// NewScheduleService wires the generate flow. runs may be nil.
func NewScheduleService(vision VisionClient, tables *Tables, imageOpts imaging.Options, runs RunRecorder, log *logger.Logger) *ScheduleService {
	if log == nil {
		log = logger.Nop()
	}
	if tables == nil {
		tables = DefaultTables()
	}
	return &ScheduleService{
		vision:    vision,
		tables:    tables,
		imageOpts: imageOpts,
		runs:      runs,
		log:       log.With("component", "schedule"),
	}
}

func (s *ScheduleService) Tables() *Tables {
	return s.tables
}

func (s *ScheduleService) Generate(ctx context.Context, img internal.ImageInput, source internal.SubmissionSource) (Schedule, error) {
	return s.generate(ctx, img, source, nil)
}

func (s *ScheduleService) GenerateForSubmission(ctx context.Context, img internal.ImageInput, submissionID int) (Schedule, error) {
	return s.generate(ctx, img, internal.SourceMail, &submissionID)
}

func (s *ScheduleService) generate(ctx context.Context, img internal.ImageInput, source internal.SubmissionSource, submissionID *int) (Schedule, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.log.With("runId", runID, "source", source)

	prepared, err := imaging.Prepare(img.Data, img.MimeType, s.imageOpts)
	if err != nil {
		log.Warn("image preparation failed, sending original bytes", "mimeType", img.MimeType, "error", err)
	} else {
		img.Data = prepared.Data
		img.MimeType = prepared.MimeType
		if prepared.Resized {
			log.Debug("image resized", "width", prepared.Width, "height", prepared.Height)
		}
	}

	reply, err := s.vision.DescribeImage(ctx, img)
	if err != nil {
		s.record(log, internal.RunRow{RunID: runID, Source: source, SubmissionID: submissionID, DurationMs: time.Since(start).Milliseconds(), Error: err.Error()})
		return Schedule{}, fmt.Errorf("describe image: %w", err)
	}

	candidates, usedFallback := ParseModelReply(reply, s.tables)
	if usedFallback {
		log.Warn("model reply was not a JSON array, using fallback record", "replyLength", len(reply))
	}
	materials := Normalize(candidates, s.tables)

	s.record(log, internal.RunRow{
		RunID:        runID,
		Source:       source,
		SubmissionID: submissionID,
		Materials:    len(materials),
		UsedFallback: usedFallback,
		DurationMs:   time.Since(start).Milliseconds(),
	})
	log.Info("schedule generated", "materials", len(materials), "fallback", usedFallback, "durationMs", time.Since(start).Milliseconds())

	return Schedule{RunID: runID, Materials: materials, UsedFallback: usedFallback}, nil
}

func (s *ScheduleService) record(log *logger.Logger, run internal.RunRow) {
	if s.runs == nil {
		return
	}
	if err := s.runs.InsertRun(run); err != nil {
		log.Warn("failed to record run", "error", err)
	}
}

// SubmissionProcessor turns fetched e-mails into exported workbooks.
type SubmissionProcessor struct {
	db        *storage.DB
	schedules *ScheduleService
	outputDir string
	threshold float64
	log       *logger.Logger
}

func NewSubmissionProcessor(db *storage.DB, schedules *ScheduleService, outputDir string, threshold float64, log *logger.Logger) *SubmissionProcessor {
	if log == nil {
		log = logger.Nop()
	}
	return &SubmissionProcessor{
		db:        db,
		schedules: schedules,
		outputDir: outputDir,
		threshold: threshold,
		log:       log.With("component", "submissions"),
	}
}

type ProcessResult struct {
	SubmissionID int
	Status       string
	OutputRef    string
	Schedules    int
	Materials    int
}

func (p *SubmissionProcessor) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	sub, err := p.db.MustSubmissionByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return p.ProcessSubmission(ctx, sub)
}

// ProcessPending works through fetched submissions oldest first. A failure
// on one submission marks it failed and moves on; only storage errors and
// cancellation stop the batch.
func (p *SubmissionProcessor) ProcessPending(ctx context.Context, limit int, provider string) ([]ProcessResult, error) {
	pending, err := p.db.ListSubmissionsByStatus(storage.StatusFetched, provider, limit)
	if err != nil {
		return nil, err
	}

	results := []ProcessResult{}
	for _, sub := range pending {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := p.ProcessSubmission(ctx, sub)
		if err != nil {
			var se storageError
			if errors.As(err, &se) || errors.Is(err, context.Canceled) {
				return results, err
			}
			p.log.Warn("submission failed", "submissionId", sub.ID, "messageId", sub.MessageID, "error", err)
		}
		results = append(results, res)
	}
	return results, nil
}

type storageError struct{ err error }

func (e storageError) Error() string { return "storage: " + e.err.Error() }
func (e storageError) Unwrap() error { return e.err }

func (p *SubmissionProcessor) ProcessSubmission(ctx context.Context, sub internal.SubmissionRow) (ProcessResult, error) {
	res := ProcessResult{SubmissionID: sub.ID}
	fail := func(err error) (ProcessResult, error) {
		res.Status = storage.StatusFailed
		if uerr := p.db.UpdateSubmissionStatus(sub.ID, storage.StatusFailed, ""); uerr != nil {
			return res, storageError{uerr}
		}
		return res, err
	}

	raw, err := os.ReadFile(sub.RawRef)
	if err != nil {
		return fail(err)
	}
	parsed, err := ParseSubmission(raw)
	if err != nil {
		return fail(err)
	}

	detect := DetectSubmission(util.FirstNonEmpty(parsed.Subject, sub.Subject), parsed.Text, parsed.HTML, len(parsed.Images), p.threshold)
	if !detect.IsSchedule {
		p.log.Info("submission skipped", "submissionId", sub.ID, "score", detect.Score, "reason", detect.Reason)
		res.Status = storage.StatusSkipped
		if err := p.db.UpdateSubmissionStatus(sub.ID, storage.StatusSkipped, ""); err != nil {
			return res, storageError{err}
		}
		return res, nil
	}

	sheets := make([]Sheet, 0, len(parsed.Images))
	for _, img := range parsed.Images {
		schedule, err := p.schedules.GenerateForSubmission(ctx, internal.ImageInput{
			Data:     img.Data,
			MimeType: img.MimeType,
			Hints:    parsed.Hints,
		}, sub.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return res, err
			}
			return fail(fmt.Errorf("%s: %w", img.Name, err))
		}
		sheets = append(sheets, Sheet{Name: strings.TrimSuffix(img.Name, filepath.Ext(img.Name)), Records: schedule.Materials})
		res.Materials += len(schedule.Materials)
	}
	res.Schedules = len(sheets)

	outPath := filepath.Join(p.outputDir, "listener", fmt.Sprintf("%s_%d.xlsx", util.SanitizeFileName(sub.MessageID, 80), sub.ID))
	if err := ExportXLSX(outPath, sheets...); err != nil {
		return fail(err)
	}

	res.Status = storage.StatusExported
	res.OutputRef = outPath
	if err := p.db.UpdateSubmissionStatus(sub.ID, storage.StatusExported, outPath); err != nil {
		return res, storageError{err}
	}
	p.log.Info("submission exported", "submissionId", sub.ID, "schedules", res.Schedules, "materials", res.Materials, "output", outPath)
	return res, nil
}
