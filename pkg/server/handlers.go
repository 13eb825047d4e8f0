package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-lab/models"
	"recipe-lab/pkg/assemble"
	"recipe-lab/pkg/extract"
)

type predictRequest struct {
	Mode         string `json:"mode"`
	Text         string `json:"text"`
	URL          string `json:"url"`
	ImageDataURL string `json:"image_data_url"`
	ImageName    string `json:"image_name"`
}

type predictResponse struct {
	Method          string                  `json:"method"`
	Title           string                  `json:"title,omitempty"`
	SourceURL       string                  `json:"source_url,omitempty"`
	Truncated       bool                    `json:"truncated"`
	Classifications []models.Classification `json:"classifications"`
	Recipe          models.Recipe           `json:"recipe"`
}

type assembleLine struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

type assembleRequest struct {
	Lines       []assembleLine `json:"lines"`
	SourceURL   string         `json:"source_url"`
	SourceTitle string         `json:"source_title"`
}

type runRequest struct {
	DatasetDir string `json:"dataset_dir"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"model_loaded": s.pred.Ready(),
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var (
		lines     []string
		truncated bool
		method    string
		title     string
		sourceURL string
	)

	switch req.Mode {
	case "", "text":
		if strings.TrimSpace(req.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		lines, truncated = extract.NormalizeLines(req.Text, s.cfg.Server.MaxLines)
		method = "text_input"

	case "url":
		if strings.TrimSpace(req.URL) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}
		body, err := s.fetch.GetHTML(c.Request.Context(), req.URL)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("failed to fetch url: %v", err)})
			return
		}
		result, err := extract.FromHTML(req.URL, body)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("failed to extract recipe text: %v", err)})
			return
		}
		lines, truncated = extract.NormalizeLines(strings.Join(result.Lines, "\n"), s.cfg.Server.MaxLines)
		method = result.Method
		title = result.Title
		sourceURL = req.URL

	case "image":
		image, err := decodeImageDataURL(req.ImageDataURL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		text, ocrMethod, err := s.recognizer.Recognize(c.Request.Context(), image, req.ImageName)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("ocr failed: %v", err)})
			return
		}
		lines, truncated = extract.NormalizeLines(text, s.cfg.Server.MaxLines)
		method = ocrMethod

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown mode: %q", req.Mode)})
		return
	}

	if len(lines) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no usable lines in input"})
		return
	}

	classifications, err := s.pred.PredictDocument(lines)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, predictResponse{
		Method:          method,
		Title:           title,
		SourceURL:       sourceURL,
		Truncated:       truncated,
		Classifications: classifications,
		Recipe:          assemble.Assemble(classifications, sourceURL, title),
	})
}

func (s *Server) handleAssemble(c *gin.Context) {
	var req assembleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lines are required"})
		return
	}

	rows := make([]models.Classification, 0, len(req.Lines))
	for i, line := range req.Lines {
		if !models.IsValidLabel(line.Label) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid label %q at line %d", line.Label, i)})
			return
		}
		rows = append(rows, models.Classification{
			Index:      i,
			Text:       line.Text,
			Label:      line.Label,
			Confidence: 1.0,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"recipe": assemble.Assemble(rows, req.SourceURL, req.SourceTitle),
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !s.trainMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "another lifecycle run is in progress"})
		return
	}
	defer s.trainMu.Unlock()

	result, err := s.orch.RunMetrics(c.Request.Context(), req.DatasetDir)
	if err != nil {
		s.logger.Error("metrics run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRetrain(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !s.trainMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "another lifecycle run is in progress"})
		return
	}
	defer s.trainMu.Unlock()

	result, err := s.orch.Retrain(c.Request.Context(), req.DatasetDir)
	if err != nil {
		s.logger.Error("retrain run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	entries, err := s.runs.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": entries})
}

// decodeImageDataURL accepts either a full data URL or bare base64 bytes.
func decodeImageDataURL(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("image_data_url is required")
	}
	if idx := strings.Index(raw, ","); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+1:]
	}
	image, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("image data is empty")
	}
	return image, nil
}
