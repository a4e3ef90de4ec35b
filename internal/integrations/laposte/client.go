package laposte

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fetcher — один запрос к API отслеживания на каждый вызов.
// Реализации не интерпретируют структуру ответа.
type Fetcher interface {
	Fetch(ctx context.Context, shipmentID string) ([]byte, error)
}

// FetchError — транспортная или HTTP-ошибка при обращении к провайдеру.
// StatusCode равен нулю, если до HTTP-статуса дело не дошло.
type FetchError struct {
	StatusCode int
	Reason     string
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API call unsuccessful with status %d - \"%s\"", e.StatusCode, e.Reason)
	}
	return e.Reason
}

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Fetch(ctx context.Context, shipmentID string) ([]byte, error) {
	u := fmt.Sprintf("%s/suivi-unifie/idship/%s?lang=en_GB", c.baseURL, url.PathEscape(shipmentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Reason: err.Error()}
	}
	req.Header.Set("X-Okapi-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &FetchError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Reason: err.Error()}
	}

	if resp.StatusCode/100 != 2 {
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Reason:     strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}
