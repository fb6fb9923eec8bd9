package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bimschedule/internal/config"
	"bimschedule/internal/logger"
	"bimschedule/internal/pipeline"
	"bimschedule/internal/vision"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	cfg       config.Config
	schedules *pipeline.ScheduleService
	vision    vision.Client
	pages     *template.Template
	log       *logger.Logger
}

func New(cfg config.Config, schedules *pipeline.ScheduleService, client vision.Client, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	pages, err := template.New("pages").Funcs(template.FuncMap{
		"summary": pipeline.Summary,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:       cfg,
		schedules: schedules,
		vision:    client,
		pages:     pages,
		log:       log.With("component", "server"),
	}, nil
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(s.log))
	r.Use(CORS(s.cfg.CORSAllowOrigins))
	r.MaxMultipartMemory = s.cfg.MaxUploadBytes
	r.SetHTMLTemplate(s.pages)

	r.GET("/healthcheck", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/", s.Index)
	r.POST("/schedule", s.SchedulePage)

	api := r.Group("/api")
	{
		api.POST("/generate-materials", s.GenerateMaterials)
		api.GET("/debug", s.Debug)
		api.POST("/test-simple", s.TestSimple)

		api.POST("/export/csv", s.ExportCSV)
		api.POST("/export/xlsx", s.ExportXLSX)
		api.POST("/export/summary", s.ExportSummary)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
