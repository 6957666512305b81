package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/opsync/pkg/api"
)

// ErrTransport is matched by every error that means "no usable response":
// network failure, timeout or a non-2xx status
var ErrTransport = errors.New("transport error")

// TransportError описывает неудачную попытку обмена с сервером.
// StatusCode равен 0, если ответ не был получен вовсе.
type TransportError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("request failed: %v", e.Err)
	default:
		return "request failed"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransport) true for any TransportError
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Client представляет HTTP клиент для взаимодействия с сервером синхронизации
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// WithToken sets the device bearer token sent with every request
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// Reconcile отправляет пакет операций и возвращает результаты в порядке отправки
func (c *Client) Reconcile(ctx context.Context, req api.ReconcileRequest) (*api.ReconcileResponse, error) {
	var resp api.ReconcileResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync/batch", req, &resp); err != nil {
		return nil, fmt.Errorf("reconcile request failed: %w", err)
	}
	return &resp, nil
}

// Resolve сообщает серверу решение по конфликту
func (c *Client) Resolve(ctx context.Context, req api.ResolveRequest) (*api.ResolveResponse, error) {
	var resp api.ResolveResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync/resolve", req, &resp); err != nil {
		return nil, fmt.Errorf("resolve request failed: %w", err)
	}
	return &resp, nil
}

// DeviceStatus получает счетчики устройства на сервере
func (c *Client) DeviceStatus(ctx context.Context, deviceID string) (*api.DeviceStatusResponse, error) {
	var resp api.DeviceStatusResponse
	path := "/api/v1/devices/" + url.PathEscape(deviceID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("device status request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	// Любой не-2xx означает отказ всего запроса
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		tErr := &TransportError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			tErr.Message = errResp.Message
			if tErr.Message == "" {
				tErr.Message = errResp.Error
			}
		}
		return tErr
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &TransportError{Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}
