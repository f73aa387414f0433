package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/bsdetector/internal/agent"
	"github.com/ppiankov/bsdetector/internal/llm"
	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/pipeline"
	"github.com/ppiankov/bsdetector/internal/report"
	"github.com/ppiankov/bsdetector/internal/tools"
)

type chatBody struct {
	Messages      []llm.Message    `json:"messages"`
	URL           string           `json:"url"`
	SourceType    model.SourceType `json:"sourceType"`
	InputMarkdown string           `json:"inputMarkdown"`
}

type urlBody struct {
	URL string `json:"url"`
}

type transformBody struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// handleChat handles POST /api/chat. The reply is a plain-text stream of
// model output.
func (s *Server) handleChat(c *gin.Context) {
	var body chatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	wrote := false
	onText := func(delta string) {
		if !wrote {
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Header("Cache-Control", "no-cache")
			c.Header("X-Content-Type-Options", "nosniff")
			c.Status(http.StatusOK)
			wrote = true
		}
		_, _ = c.Writer.WriteString(delta)
		c.Writer.Flush()
	}

	_, err := s.pipeline.Chat(c.Request.Context(), pipeline.ChatRequest{
		Messages:      body.Messages,
		URL:           body.URL,
		SourceType:    body.SourceType,
		InputMarkdown: body.InputMarkdown,
	}, onText)
	if err != nil {
		if wrote {
			// Headers are gone; the client sees a truncated stream
			s.logger.Error().Err(err).Msg("Chat stream aborted")
			return
		}
		s.writeError(c, err)
		return
	}
	if !wrote {
		c.String(http.StatusOK, "")
	}
}

// handleAnnotate handles POST /api/annotate
func (s *Server) handleAnnotate(c *gin.Context) {
	var body urlBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'url'"})
		return
	}

	res, err := s.pipeline.Annotate(c.Request.Context(), body.URL)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleReport handles GET /api/report?url=
func (s *Server) handleReport(c *gin.Context) {
	url := c.Query("url")
	if strings.TrimSpace(url) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'url' query parameter"})
		return
	}

	res, err := s.pipeline.Report(c.Request.Context(), url)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !res.Found {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleReportHTML handles GET /api/report/html?url=
func (s *Server) handleReportHTML(c *gin.Context) {
	url := c.Query("url")
	if strings.TrimSpace(url) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'url' query parameter"})
		return
	}

	res, err := s.pipeline.Report(c.Request.Context(), url)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !res.Found || res.Report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No report for this URL"})
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", report.RenderHTML(report.RenderMarkdown(*res.Report)))
}

// handleParse handles POST /api/parse
func (s *Server) handleParse(c *gin.Context) {
	var body urlBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid 'url' field"})
		return
	}

	page, err := s.pipeline.Parse(c.Request.Context(), body.URL)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"markdown": page.Content,
		"title":    page.Title,
		"source":   model.SourceURL,
		"url":      page.URL,
	})
}

// handleTransform handles POST /api/transform
func (s *Server) handleTransform(c *gin.Context) {
	var body transformBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'url'"})
		return
	}

	res, err := s.pipeline.Transform(c.Request.Context(), body.URL, body.HTML)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleEvents handles GET /api/events as a server-sent event stream. Only
// events pushed after the client connects are delivered.
func (s *Server) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	sub := s.bus.Subscribe(ctx, s.cfg.EventPollInterval)

	connected := model.AgentEvent{
		Type:      model.EventConnected,
		Message:   "Connected to agent event stream",
		Timestamp: time.Now().UnixMilli(),
	}
	if err := writeSSE(c, connected); err != nil {
		return
	}

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := writeSSE(c, ev); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := c.Writer.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func writeSSE(c *gin.Context, ev model.AgentEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", b); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// writeError maps pipeline errors onto HTTP status codes
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, agent.ErrModelUnavailable), errors.Is(err, tools.ErrScrape):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Int("status", status).Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
