// Package backend is the HTTP client for the pipeline backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"crmintctl/internal/model"
	"crmintctl/pkg/logx"
)

const maxErrBody = 4 << 10

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RatePerSec int
	UserAgent  string
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: http %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.Status, body)
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

type Client struct {
	base    *url.URL
	token   string
	ua      string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("backend.base_url is required")
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend.base_url: unsupported scheme %q", u.Scheme)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "crmintctl"
	}
	return &Client{
		base:    u,
		token:   strings.TrimSpace(cfg.Token),
		ua:      ua,
		timeout: timeout,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log.With(logx.String("base_url", u.String())),
	}, nil
}

func (c *Client) GetConfigData(ctx context.Context) (model.Configuration, error) {
	out := model.DefaultConfiguration()
	if err := c.do(ctx, http.MethodGet, "/api/configuration", nil, &out); err != nil {
		return model.DefaultConfiguration(), err
	}
	if out.Settings == nil {
		out.Settings = []model.Setting{}
	}
	if out.Variables == nil {
		out.Variables = []model.Param{}
	}
	return out, nil
}

func (c *Client) SaveSettings(ctx context.Context, settings []model.Setting) error {
	body := struct {
		Settings []model.Setting `json:"settings"`
	}{Settings: nonNil(settings)}
	return c.do(ctx, http.MethodPut, "/api/general_settings", body, nil)
}

func (c *Client) SaveVariables(ctx context.Context, vars []model.Param) error {
	body := struct {
		Variables []model.Param `json:"variables"`
	}{Variables: nonNil(vars)}
	return c.do(ctx, http.MethodPut, "/api/global_variables", body, nil)
}

func (c *Client) ResetStatusesAndClearTasks(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/reset/statuses", nil, nil)
}

func (c *Client) GetTasksInfo(ctx context.Context) (model.TasksInfo, error) {
	var out model.TasksInfo
	if err := c.do(ctx, http.MethodGet, "/api/tasks/info", nil, &out); err != nil {
		return model.TasksInfo{}, err
	}
	return out, nil
}

func (c *Client) ListPipelines(ctx context.Context) ([]model.Pipeline, error) {
	var out []model.Pipeline
	if err := c.do(ctx, http.MethodGet, "/api/pipelines", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StartPipeline(ctx context.Context, id int64) (model.Pipeline, error) {
	return c.pipelineAction(ctx, id, "start")
}

func (c *Client) StopPipeline(ctx context.Context, id int64) (model.Pipeline, error) {
	return c.pipelineAction(ctx, id, "stop")
}

func (c *Client) pipelineAction(ctx context.Context, id int64, action string) (model.Pipeline, error) {
	var out model.Pipeline
	path := "/api/pipelines/" + strconv.FormatInt(id, 10) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return model.Pipeline{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("backend request",
		logx.String("method", method),
		logx.String("path", path),
		logx.Int("status", resp.StatusCode),
		logx.String("request_id", reqID),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return &HTTPError{Method: method, Path: path, Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
