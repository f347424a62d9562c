package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/notify"
	"github.com/0xmhha/tab-monitor/pkg/stats"
)

// DefaultClientTimeout bounds one request when ClientConfig.Timeout is unset.
const DefaultClientTimeout = 3 * time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	// Addr is the engine address, "host:port" or a full http URL.
	Addr string

	// Timeout bounds each request. A request with no answer in time
	// fails with ErrUnavailable.
	Timeout time.Duration
}

// StreamMessage is a push notification read from /api/events. Data is
// left raw because its shape depends on EventType.
type StreamMessage struct {
	EventType notify.EventType `json:"event_type"`
	Data      json.RawMessage  `json:"data"`
	Timestamp int64            `json:"timestamp"`
}

// Client talks to a running engine.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
	log     logger.Logger
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientTimeout
	}

	base := strings.TrimRight(cfg.Addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		base:    base,
		timeout: cfg.Timeout,
		// Timeouts are per request via context, so streams can stay open.
		http: &http.Client{},
		log:  logger.ForComponent(log, "client"),
	}
}

// GetStats fetches the current report.
func (c *Client) GetStats(ctx context.Context) (stats.Report, error) {
	return c.do(ctx, http.MethodGet, "/api/stats")
}

// StartTracking starts tracking and returns the updated report.
func (c *Client) StartTracking(ctx context.Context) (stats.Report, error) {
	return c.do(ctx, http.MethodPost, "/api/tracking/start")
}

// PauseTracking pauses tracking and returns the updated report.
func (c *Client) PauseTracking(ctx context.Context) (stats.Report, error) {
	return c.do(ctx, http.MethodPost, "/api/tracking/pause")
}

// ResetData clears all aggregates and returns the updated report.
func (c *Client) ResetData(ctx context.Context) (stats.Report, error) {
	return c.do(ctx, http.MethodPost, "/api/reset")
}

// Status fetches the current report. When no engine answers it returns a
// demo report and connected == false. Engine errors are returned as is.
func (c *Client) Status(ctx context.Context) (report stats.Report, connected bool, err error) {
	report, err = c.GetStats(ctx)
	if errors.Is(err, ErrUnavailable) {
		c.log.Debug("engine unreachable, using demo data", "error", err)
		return stats.Demo(time.Now()), false, nil
	}
	if err != nil {
		return stats.Report{}, true, err
	}
	return report, true, nil
}

// Stream reads push notifications and calls fn for each until ctx is
// cancelled or the engine closes the stream.
func (c *Client) Stream(ctx context.Context, fn func(StreamMessage)) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(sctx, http.MethodGet, c.base+"/api/events", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Only the connection attempt is bounded by the client timeout.
	timer := time.AfterFunc(c.timeout, cancel)
	resp, err := c.http.Do(req)
	if !timer.Stop() && err == nil {
		_ = resp.Body.Close()
		err = context.DeadlineExceeded
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Debug("failed to close stream", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	err = readEvents(resp.Body, func(event string, data []byte) {
		if event == "connected" {
			return
		}
		var msg StreamMessage
		if jsonErr := json.Unmarshal(data, &msg); jsonErr != nil {
			c.log.Warn("malformed notification", "event", event, "error", jsonErr)
			return
		}
		fn(msg)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string) (stats.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, http.NoBody)
	if err != nil {
		return stats.Report{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return stats.Report{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Debug("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return stats.Report{}, decodeError(resp)
	}

	var report stats.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return stats.Report{}, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}

func decodeError(resp *http.Response) error {
	var body ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	apiErr := &Error{Status: resp.StatusCode, Message: body.Error}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: %v", ErrUnavailable, apiErr)
	}
	return apiErr
}

// readEvents parses a server-sent event stream. Comment lines are skipped.
func readEvents(r io.Reader, fn func(event string, data []byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 4<<20)

	var event string
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" || len(data) > 0 {
				fn(event, data)
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:"))...)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event stream: %w", err)
	}
	return nil
}
