package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bimschedule/internal"
	"bimschedule/internal/vision"
)

type indexPage struct {
	DemoMode bool
	Error    string
}

type schedulePage struct {
	RunID        string
	UsedFallback bool
	Materials    []internal.MaterialRecord
}

func (s *Server) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", indexPage{DemoMode: s.cfg.DemoMode})
}

func (s *Server) SchedulePage(c *gin.Context) {
	if s.credentialMissing() {
		c.HTML(http.StatusInternalServerError, "index.html", indexPage{Error: "OpenAI API key not configured"})
		return
	}

	img, err := s.readImage(c)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		msg := "No image provided"
		if !errors.Is(err, errNoImage) {
			msg = err.Error()
		}
		c.HTML(status, "index.html", indexPage{DemoMode: s.cfg.DemoMode, Error: msg})
		return
	}

	schedule, err := s.schedules.Generate(c.Request.Context(), img, internal.SourceUpload)
	if err != nil {
		s.log.Error("schedule page failed", "request_id", c.GetString(requestIDKey), "error", err)
		c.HTML(http.StatusInternalServerError, "index.html", indexPage{
			DemoMode: s.cfg.DemoMode,
			Error:    "Failed to generate materials: " + vision.ErrorKind(err),
		})
		return
	}

	c.Header(runIDHeader, schedule.RunID)
	c.HTML(http.StatusOK, "schedule.html", schedulePage{
		RunID:        schedule.RunID,
		UsedFallback: schedule.UsedFallback,
		Materials:    schedule.Materials,
	})
}
