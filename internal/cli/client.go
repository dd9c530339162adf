package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Типы ответов повторяют api/dto.go: CLI не импортирует internal/api.

// TaskResponse — задача из API.
type TaskResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps"`
	Plan        []string `json:"plan,omitempty"`
	Running     bool     `json:"running"`
}

// StepResponse — результат шага из API.
type StepResponse struct {
	Index      int            `json:"index"`
	Name       string         `json:"name"`
	Type       string         `json:"type,omitempty"`
	Status     string         `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID         string            `json:"id"`
	Task       string            `json:"task"`
	Status     string            `json:"status"`
	Plan       []string          `json:"plan"`
	Steps      []StepResponse    `json:"steps,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
	Trigger    string            `json:"trigger,omitempty"`
	FailedStep string            `json:"failed_step,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  string            `json:"started_at,omitempty"`
	FinishedAt string            `json:"finished_at,omitempty"`
	CreatedAt  string            `json:"created_at"`
}

// ScheduleResponse — расписание из API.
type ScheduleResponse struct {
	Name        string            `json:"name"`
	Task        string            `json:"task"`
	CronExpr    string            `json:"cron_expr,omitempty"`
	IntervalSec int               `json:"interval_sec,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
	Enabled     bool              `json:"enabled"`
	Options     map[string]string `json:"options,omitempty"`
	NextDueAt   string            `json:"next_due_at,omitempty"`
	LastRunAt   string            `json:"last_run_at,omitempty"`
	LastRunID   string            `json:"last_run_id,omitempty"`
}

// CreateRunRequest — запуск задачи.
type CreateRunRequest struct {
	Options map[string]string `json:"options,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Task   string
	Status string
	Limit  int
}

// envelope — общий вид ответов API: {"data": ...} или {"error": ...}.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client — HTTP-клиент для API conveyor serve.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListTasks возвращает все задачи.
func (c *Client) ListTasks(ctx context.Context) ([]TaskResponse, error) {
	var tasks []TaskResponse
	return tasks, c.call(ctx, http.MethodGet, "/api/v1/tasks", nil, &tasks)
}

// GetTask возвращает задачу с развёрнутыми шагами.
func (c *Client) GetTask(ctx context.Context, name string) (*TaskResponse, error) {
	var task TaskResponse
	return &task, c.call(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(name), nil, &task)
}

// StartRun запускает задачу на сервере.
func (c *Client) StartRun(ctx context.Context, task string, req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	return &run, c.call(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(task)+"/runs", req, &run)
}

// ListRuns возвращает историю run'ов.
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOpts) ([]RunResponse, error) {
	q := url.Values{}
	if opts.Task != "" {
		q.Set("task", opts.Task)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var runs []RunResponse
	return runs, c.call(ctx, http.MethodGet, path, nil, &runs)
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(ctx context.Context, id string) (*RunResponse, error) {
	var run RunResponse
	return &run, c.call(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(id), nil, &run)
}

// ListSchedules возвращает расписания сервера.
func (c *Client) ListSchedules(ctx context.Context) ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	return schedules, c.call(ctx, http.MethodGet, "/api/v1/schedules", nil, &schedules)
}

// call выполняет запрос и раскладывает поле data ответа в result.
func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, decodeErr)
	}
	if result == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, result)
}
