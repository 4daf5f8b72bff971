package server

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/kahosan/mosdash/internal/control"
	"github.com/kahosan/mosdash/internal/parser"
	"github.com/kahosan/mosdash/internal/store"
)

// maxFileSize bounds uploaded config and rule files.
const maxFileSize = 32 << 20

var contentTypes = map[store.Dir]string{
	store.DirConfig: "application/yaml",
	store.DirRule:   "text/plain; charset=utf-8",
}

func (s *Server) listFiles(d store.Dir) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := s.store.List(d)
		if err != nil {
			c.String(http.StatusInternalServerError, "Failed to read %s directory: %v", d, err)
			return
		}
		c.JSON(http.StatusOK, names)
	}
}

func (s *Server) readFile(d store.Dir) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := s.store.Read(d, c.Param("file"))
		if err != nil {
			c.String(statusOf(err), "Failed to read file: %v", err)
			return
		}
		c.Data(http.StatusOK, contentTypes[d], b)
	}
}

func (s *Server) writeFile(d store.Dir) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("file")
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxFileSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.String(http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			c.String(http.StatusBadRequest, "Failed to read request body: %v", err)
			return
		}

		if err := s.store.Write(d, name, body); err != nil {
			c.String(statusOf(err), "Failed to write file: %v", err)
			return
		}
		s.logger.Info().Str("dir", string(d)).Str("file", name).Int("bytes", len(body)).Msg("file updated")
		c.String(http.StatusOK, "File updated successfully")
	}
}

func (s *Server) handleLog(c *gin.Context) {
	content, err := os.ReadFile(s.logPath)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to read log file: %v", err)
		return
	}

	entries, err := parser.ParseAll(content, s.strictLog)
	if err != nil {
		c.String(http.StatusInternalServerError, "%v", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) runAction(a control.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.control.Do(c.Request.Context(), a); err != nil {
			if errors.Is(err, control.ErrRateLimited) {
				c.String(http.StatusTooManyRequests, "Too many requests, try again later")
				return
			}
			c.String(http.StatusInternalServerError, "Failed to execute command: %v", err)
			return
		}
		c.String(http.StatusOK, "Command executed successfully")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.aggregator != nil {
		stats := s.aggregator.Snapshot()
		resp["uptime"] = stats.Uptime
		resp["streams"] = stats.Streams
		resp["dropped_logs"] = stats.DroppedLogs
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	if s.aggregator == nil {
		c.String(http.StatusServiceUnavailable, "Log streaming is disabled")
		return
	}
	c.JSON(http.StatusOK, s.aggregator.Snapshot())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, store.ErrUnknownDir):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
