package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"marketdash/pkg/models"
)

const defaultHTTPTimeout = 10 * time.Second

var (
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrEmptySnapshot = errors.New("invalid data format received")
)

// APIError is a non-2xx response. Message carries the server's "error" field
// when the body has one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Session is what signup and login hand back.
type Session struct {
	Token string
	User  models.User
}

// API talks to the dashboard's HTTP endpoints.
type API struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (a *API) BaseURL() string {
	return a.baseURL
}

func (a *API) Signup(ctx context.Context, name, email, password string) (Session, error) {
	return a.session(ctx, "/api/signup", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

func (a *API) Login(ctx context.Context, email, password string) (Session, error) {
	return a.session(ctx, "/api/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Quotes fetches the current quote snapshot. An empty list is an error, the
// same as a failed request.
func (a *API) Quotes(ctx context.Context, token string) ([]models.Quote, error) {
	body, err := a.get(ctx, "/api/stocks", token)
	if err != nil {
		return nil, err
	}

	var quotes []models.Quote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptySnapshot, err)
	}
	if len(quotes) == 0 {
		return nil, ErrEmptySnapshot
	}
	return quotes, nil
}

func (a *API) Nifty(ctx context.Context, token string) (models.IndexSeries, error) {
	return a.index(ctx, "/api/nifty50", token)
}

func (a *API) Sensex(ctx context.Context, token string) (models.IndexSeries, error) {
	return a.index(ctx, "/api/sensex", token)
}

func (a *API) index(ctx context.Context, path, token string) (models.IndexSeries, error) {
	body, err := a.get(ctx, path, token)
	if err != nil {
		return models.IndexSeries{}, err
	}

	var series models.IndexSeries
	if err := json.Unmarshal(body, &series); err != nil {
		return models.IndexSeries{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(series.Prices) != len(series.Timestamps) {
		return models.IndexSeries{}, fmt.Errorf("decode %s: %d prices for %d timestamps", path, len(series.Prices), len(series.Timestamps))
	}
	return series, nil
}

func (a *API) session(ctx context.Context, path string, payload map[string]string) (Session, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := a.do(req)
	if err != nil {
		return Session{}, err
	}

	token := gjson.GetBytes(body, "token")
	if !token.Exists() || token.String() == "" {
		return Session{}, fmt.Errorf("%s: response has no token", path)
	}
	return Session{
		Token: token.String(),
		User: models.User{
			Name:  gjson.GetBytes(body, "name").String(),
			Email: gjson.GetBytes(body, "email").String(),
		},
	}, nil
}

func (a *API) get(ctx context.Context, path, token string) ([]byte, error) {
	if token == "" {
		return nil, ErrNotLoggedIn
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return a.do(req)
}

func (a *API) do(req *http.Request) ([]byte, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Status:  resp.StatusCode,
			Message: gjson.GetBytes(body, "error").String(),
		}
	}
	return body, nil
}
