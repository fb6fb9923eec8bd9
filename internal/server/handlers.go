package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bimschedule/internal"
	"bimschedule/internal/pipeline"
	"bimschedule/internal/vision"
)

const (
	runIDHeader  = "X-Run-ID"
	exportName   = "bim-schedule"
	xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errNoImage = errors.New("no image provided")

type generateResponse struct {
	Materials []internal.MaterialRecord `json:"materials"`
}

type exportRequest struct {
	Materials []internal.MaterialRecord `json:"materials"`
}

func (s *Server) credentialMissing() bool {
	return !s.cfg.DemoMode && s.cfg.OpenAIAPIKey == ""
}

func (s *Server) GenerateMaterials(c *gin.Context) {
	if s.credentialMissing() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "OpenAI API key not configured"})
		return
	}

	img, err := s.readImage(c)
	if err != nil {
		s.respondUploadError(c, err)
		return
	}

	schedule, err := s.schedules.Generate(c.Request.Context(), img, internal.SourceUpload)
	if err != nil {
		s.log.Error("generate materials failed", "request_id", c.GetString(requestIDKey), "error", err)
		if errors.Is(err, vision.ErrMissingCredential) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "OpenAI API key not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to generate materials",
			"details": err.Error(),
			"type":    vision.ErrorKind(err),
		})
		return
	}

	c.Header(runIDHeader, schedule.RunID)
	c.JSON(http.StatusOK, generateResponse{Materials: schedule.Materials})
}

func (s *Server) Debug(c *gin.Context) {
	key := s.cfg.OpenAIAPIKey
	c.JSON(http.StatusOK, gin.H{
		"hasApiKey":          key != "",
		"apiKeyLength":       len(key),
		"apiKeyStartsWithSk": strings.HasPrefix(key, "sk-"),
		"demoMode":           s.cfg.DemoMode,
		"timestamp":          time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func (s *Server) TestSimple(c *gin.Context) {
	msg, err := s.vision.Ping(c.Request.Context())
	if err != nil {
		s.log.Warn("model ping failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Test failed",
			"message": err.Error(),
			"type":    vision.ErrorKind(err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (s *Server) ExportCSV(c *gin.Context) {
	records, ok := s.bindExport(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	// BOM so spreadsheet apps pick UTF-8 for the £ sign.
	buf.WriteString("\ufeff")
	if err := pipeline.WriteCSV(&buf, records); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export", "details": err.Error()})
		return
	}
	attachment(c, exportName+".csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) ExportXLSX(c *gin.Context) {
	records, ok := s.bindExport(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := pipeline.WriteWorkbook(&buf, pipeline.Sheet{Name: "Schedule", Records: records}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export", "details": err.Error()})
		return
	}
	attachment(c, exportName+".xlsx")
	c.Data(http.StatusOK, xlsxMimeType, buf.Bytes())
}

func (s *Server) ExportSummary(c *gin.Context) {
	records, ok := s.bindExport(c)
	if !ok {
		return
	}
	c.String(http.StatusOK, pipeline.Summary(records))
}

func (s *Server) bindExport(c *gin.Context) ([]internal.MaterialRecord, bool) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return nil, false
	}
	if len(req.Materials) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No materials provided"})
		return nil, false
	}
	return req.Materials, true
}

// readImage pulls the "image" form file. Any failure to find it is
// reported as errNoImage; oversize bodies keep their own error.
func (s *Server) readImage(c *gin.Context) (internal.ImageInput, error) {
	if s.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return internal.ImageInput{}, err
		}
		return internal.ImageInput{}, errNoImage
	}

	f, err := fh.Open()
	if err != nil {
		return internal.ImageInput{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return internal.ImageInput{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return internal.ImageInput{}, errNoImage
	}

	mime := fh.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return internal.ImageInput{Data: data, MimeType: mime}, nil
}

func (s *Server) respondUploadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errNoImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image too large", "details": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload", "details": err.Error()})
	}
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}
