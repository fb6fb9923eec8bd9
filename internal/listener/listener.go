package listener

import (
	"context"
	"time"

	"bimschedule/internal/intake"
	"bimschedule/internal/logger"
	"bimschedule/internal/pipeline"
	"bimschedule/internal/storage"
)

type Options struct {
	Provider string
	Label    string
	Interval time.Duration
	FetchMax int
	Batch    int
}

// Service polls the mailbox, stores new messages and turns pending ones
// into schedule workbooks, once per interval until ctx is done.
type Service struct {
	fetch     *intake.FetchService
	processor *pipeline.SubmissionProcessor
	opts      Options
	log       *logger.Logger
}

func NewService(fetch *intake.FetchService, processor *pipeline.SubmissionProcessor, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Service{fetch: fetch, processor: processor, opts: opts, log: log.With("component", "listener", "provider", opts.Provider)}
}

func (s *Service) Run(ctx context.Context) error {
	s.log.Info("listener started", "label", s.opts.Label, "interval", s.opts.Interval.String())
	for {
		if err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.log.Info("listener stopped")
			return nil
		case <-time.After(s.opts.Interval):
		}
	}
}

type CycleResult struct {
	Fetched  int
	Stored   int
	Exported int
	Skipped  int
	Failed   int
}

func (s *Service) RunCycle(ctx context.Context) error {
	_, err := s.Cycle(ctx)
	return err
}

func (s *Service) Cycle(ctx context.Context) (CycleResult, error) {
	var out CycleResult

	fetchResult, err := s.fetch.FetchAndStore(ctx, s.opts.Label, s.opts.FetchMax)
	if err != nil {
		return out, err
	}
	out.Fetched, out.Stored = fetchResult.Fetched, fetchResult.Stored

	results, err := s.processor.ProcessPending(ctx, s.opts.Batch, s.opts.Provider)
	for _, r := range results {
		switch r.Status {
		case storage.StatusExported:
			out.Exported++
		case storage.StatusSkipped:
			out.Skipped++
		case storage.StatusFailed:
			out.Failed++
		}
	}
	if err != nil {
		return out, err
	}

	s.log.Info("listener cycle done",
		"fetched", out.Fetched,
		"stored", out.Stored,
		"exported", out.Exported,
		"skipped", out.Skipped,
		"failed", out.Failed,
	)
	return out, nil
}
