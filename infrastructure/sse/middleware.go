package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
)

const sseContentType = "text/event-stream"

// Handler streams broker events to one client until it disconnects.
// optsFn builds per-request client options (for query-string filters).
func Handler(b Broker, log infralogger.Logger, optsFn func(*gin.Context) []ClientOption) gin.HandlerFunc {
	return func(c *gin.Context) {
		var opts []ClientOption
		if optsFn != nil {
			opts = optsFn(c)
		}

		events, cancel, err := b.Subscribe(c.Request.Context(), opts...)
		if errors.Is(err, ErrTooManyClients) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many connections"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer cancel()

		SetSSEHeaders(c.Writer)
		c.Status(http.StatusOK)
		if err = WriteEvent(c.Writer, Event{
			Type: eventTypeConnected,
			Data: gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)},
		}); err != nil {
			return
		}

		heartbeat := time.NewTicker(b.HeartbeatInterval())
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if writeErr := WriteEvent(c.Writer, event); writeErr != nil {
					log.Debug("SSE write failed", infralogger.Error(writeErr))
					return
				}
			case <-heartbeat.C:
				if writeErr := writeComment(c.Writer, "heartbeat"); writeErr != nil {
					return
				}
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}

// SetSSEHeaders prepares w for an event stream.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", sseContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WriteEvent writes one frame and flushes when w supports it.
func WriteEvent(w io.Writer, event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal %s data: %w", event.Type, err)
	}

	if event.Type != "" {
		if _, err = fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
			return err
		}
	}
	if event.ID != "" {
		if _, err = fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return err
		}
	}
	if event.Retry > 0 {
		if _, err = fmt.Fprintf(w, "retry: %d\n", event.Retry); err != nil {
			return err
		}
	}
	if _, err = fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func writeComment(w io.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
