package steps

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
)

const (
	// StepTypeHTTP — тип шага вызова webhook'а.
	StepTypeHTTP = "http"

	defaultHTTPTimeout = 30 * time.Second

	// maxWebhookBody — сколько байт ответа сохраняется в outputs.
	maxWebhookBody = 64 * 1024
)

// HTTPStep — шаг вызова webhook'а: уведомление в чат, запуск деплоя,
// пинг сервиса покрытия.
//
// Конфигурация:
//
//	{
//	    "method": "POST",                       // по умолчанию GET, с body — POST
//	    "url": "https://hooks.example.com/{{ .Pkg.name }}",
//	    "headers": {"Authorization": "Bearer {{ .Env.HOOK_TOKEN }}"},
//	    "body": {"text": "{{ .Pkg.name }} {{ .Options.tag }} released"},
//	    "expect": [200, 201, 204],              // по умолчанию любой статус < 400
//	    "follow_redirects": true,
//	    "insecure": false,                      // не проверять TLS сертификат
//	    "timeout_sec": 30
//	}
//
// Строковый body отправляется как есть, остальное кодируется в JSON.
//
// Outputs:
//
//	{"status_code": 200, "content_type": "application/json", "body": {...}}
type HTTPStep struct {
	// secure и insecure — общие транспорты, чтобы соединения
	// переиспользовались между шагами.
	secure   http.RoundTripper
	insecure http.RoundTripper
}

// NewHTTPStep создаёт новый HTTPStep.
func NewHTTPStep() *HTTPStep {
	base := http.DefaultTransport.(*http.Transport)

	insecure := base.Clone()
	insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec

	return &HTTPStep{
		secure:   base.Clone(),
		insecure: insecure,
	}
}

// Type возвращает тип шага.
func (s *HTTPStep) Type() string {
	return StepTypeHTTP
}

// webhook — отрендеренные опции одного вызова.
type webhook struct {
	method   string
	url      string
	headers  map[string]string
	body     []byte
	expect   []int
	redirect bool
	insecure bool
	timeout  time.Duration
}

// Execute выполняет запрос и проверяет статус ответа.
func (s *HTTPStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	options, err := req.RenderOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, StepTypeHTTP, err)
	}

	hook, err := parseWebhook(options)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, hook.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, hook.method, hook.url, bytes.NewReader(hook.body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, StepTypeHTTP, err)
	}
	for k, v := range hook.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client(hook).Do(httpReq)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %s %s after %s", ErrStepTimeout, hook.method, hook.url, hook.timeout)
		}
		return nil, fmt.Errorf("%s %s: %w", hook.method, hook.url, err)
	}
	defer resp.Body.Close()

	result, err := readWebhookResponse(resp)
	if err != nil {
		return nil, err
	}

	if !hook.accepts(resp.StatusCode) {
		return result, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       fmt.Sprint(result.Outputs["body"]),
		}
	}

	req.Logger().Info("webhook called", "method", hook.method, "status_code", resp.StatusCode)
	return result, nil
}

// client собирает http.Client под настройки вызова.
func (s *HTTPStep) client(hook *webhook) *http.Client {
	c := &http.Client{Transport: s.secure}
	if hook.insecure {
		c.Transport = s.insecure
	}
	if !hook.redirect {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}

// parseWebhook проверяет опции и приводит их к webhook.
func parseWebhook(options map[string]any) (*webhook, error) {
	hook := &webhook{
		method:   strings.ToUpper(GetConfigString(options, "method")),
		url:      GetConfigString(options, "url"),
		headers:  GetConfigMapString(options, "headers"),
		redirect: GetConfigBool(options, "follow_redirects", true),
		insecure: GetConfigBool(options, "insecure", false),
		timeout:  GetConfigTimeout(options),
	}
	if hook.url == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidConfig, StepTypeHTTP)
	}
	if hook.headers == nil {
		hook.headers = make(map[string]string)
	}
	if hook.timeout <= 0 {
		hook.timeout = defaultHTTPTimeout
	}

	switch body := options["body"].(type) {
	case nil:
	case string:
		hook.body = []byte(body)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: encode body: %v", ErrInvalidConfig, StepTypeHTTP, err)
		}
		hook.body = data
		if _, ok := hook.headers["Content-Type"]; !ok {
			hook.headers["Content-Type"] = "application/json"
		}
	}

	if hook.method == "" {
		hook.method = http.MethodGet
		if hook.body != nil {
			hook.method = http.MethodPost
		}
	}

	expect, ok := GetConfigInts(options, "expect")
	if !ok {
		return nil, fmt.Errorf("%w: %s: expect must be a list of status codes", ErrInvalidConfig, StepTypeHTTP)
	}
	for _, code := range expect {
		if code < 100 || code > 599 {
			return nil, fmt.Errorf("%w: %s: bad expected status %d", ErrInvalidConfig, StepTypeHTTP, code)
		}
	}
	hook.expect = expect

	return hook, nil
}

// accepts проверяет статус ответа.
func (h *webhook) accepts(status int) bool {
	if len(h.expect) > 0 {
		return slices.Contains(h.expect, status)
	}
	return status < http.StatusBadRequest
}

// readWebhookResponse читает ответ. JSON разбирается, остальное
// сохраняется строкой.
func readWebhookResponse(resp *http.Response) (*Response, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	var body any = string(data)
	if strings.Contains(contentType, "json") {
		var parsed any
		if json.Unmarshal(data, &parsed) == nil {
			body = parsed
		}
	}

	return NewResponse(map[string]any{
		"status_code":  resp.StatusCode,
		"content_type": contentType,
		"body":         body,
	}), nil
}

// HTTPError — webhook ответил неожиданным статусом.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("webhook responded %s", e.Status)
}

func (e *HTTPError) Unwrap() error {
	return ErrHTTPStatus
}
