package app

import (
	"context"
	"fmt"
	"time"

	"bimschedule/internal/config"
	"bimschedule/internal/imaging"
	"bimschedule/internal/intake"
	"bimschedule/internal/listener"
	"bimschedule/internal/logger"
	"bimschedule/internal/pipeline"
	"bimschedule/internal/storage"
	"bimschedule/internal/vision"
)

// App holds the long-lived dependencies shared by the CLI commands.
type App struct {
	Cfg       config.Config
	Log       *logger.Logger
	DB        *storage.DB
	Tables    *pipeline.Tables
	Vision    vision.Client
	Schedules *pipeline.ScheduleService
}

func New(cfg config.Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tables, err := pipeline.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	client := vision.New(cfg, log)
	imageOpts := imaging.Options{MaxDimension: cfg.ImageMaxDimension, JPEGQuality: cfg.ImageJPEGQuality, MaxPixels: cfg.ImageMaxPixels}

	return &App{
		Cfg:       cfg,
		Log:       log,
		DB:        db,
		Tables:    tables,
		Vision:    client,
		Schedules: pipeline.NewScheduleService(client, tables, imageOpts, db, log),
	}, nil
}

func (a *App) Close() {
	_ = a.DB.Close()
	a.Log.Sync()
}

func (a *App) Processor() *pipeline.SubmissionProcessor {
	return pipeline.NewSubmissionProcessor(a.DB, a.Schedules, a.Cfg.OutputDir, a.Cfg.MailDetectThreshold, a.Log)
}

func (a *App) FetchService(ctx context.Context, provider string) (*intake.FetchService, error) {
	conn, err := intake.NewConnector(ctx, a.Cfg, provider)
	if err != nil {
		return nil, err
	}
	return intake.NewFetchService(a.DB, a.Cfg.RawMailDir, conn, a.Log), nil
}

func (a *App) Listener(ctx context.Context) (*listener.Service, error) {
	fetch, err := a.FetchService(ctx, a.Cfg.MailListenerProvider)
	if err != nil {
		return nil, err
	}
	return listener.NewService(fetch, a.Processor(), listener.Options{
		Provider: a.Cfg.MailListenerProvider,
		Label:    a.Cfg.MailListenerLabel,
		Interval: time.Duration(a.Cfg.MailListenerIntervalSec) * time.Second,
		FetchMax: a.Cfg.MailListenerFetchMax,
		Batch:    a.Cfg.MailListenerProcessBatch,
	}, a.Log), nil
}
