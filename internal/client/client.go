// Package client talks to the type2lyfe log API and the AI analysis
// service. It implements the gateways used by submission, feed and capture.
package client

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

	"github.com/pharrrodev/type2lyfe-sub001/internal/feed"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
	"github.com/pharrrodev/type2lyfe-sub001/internal/submission"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	maxResponseBytes  = 4 << 20
	userAgent         = "type2lyfe-client/1.0"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is a non-2xx API answer. Message is the server's error text.
type StatusError struct {
	StatusCode int
	Message    string
}

func (err *StatusError) Error() string {
	if err.Message != "" {
		return err.Message
	}
	return fmt.Sprintf("request failed with status %d", err.StatusCode)
}

func (err *StatusError) HTTPStatus() int {
	return err.StatusCode
}

type Client struct {
	http        httpDoer
	baseURL     string
	analysisURL string
	token       string
}

func New(baseURL string, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &Client{
		http:        &http.Client{Timeout: 60 * time.Second},
		baseURL:     base,
		analysisURL: base,
		token:       strings.TrimSpace(token),
	}
}

func (c *Client) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
		return
	}
	c.http = client
}

// SetAnalysisBaseURL points image analysis and transcription at a separate
// AI service. An empty value falls back to the API base URL.
func (c *Client) SetAnalysisBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = c.baseURL
	}
	c.analysisURL = base
}

func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

func (c *Client) Token() string {
	return c.token
}

// CreateLog posts one record. The draft id travels as client_id and as the
// Idempotency-Key header so a repeated try never creates a second entry.
func (c *Client) CreateLog(ctx context.Context, entry record.Record) (submission.Envelope, error) {
	body, err := createLogBody(entry)
	if err != nil {
		return submission.Envelope{}, err
	}

	endpoint := c.baseURL + "/api/logs/" + entry.LogType.Slug()
	request, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return submission.Envelope{}, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(IdempotencyHeader, entry.ID)

	envelope := submission.Envelope{}
	if err := c.do(request, &envelope); err != nil {
		return submission.Envelope{}, err
	}
	return envelope, nil
}

func createLogBody(entry record.Record) ([]byte, error) {
	fields := map[string]any{}
	if entry.Payload != nil {
		encoded, err := json.Marshal(entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		if err := json.Unmarshal(encoded, &fields); err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}
	fields["client_id"] = entry.ID
	fields["timestamp"] = entry.Timestamp.UTC().Format(time.RFC3339Nano)
	fields["source"] = string(entry.Source)
	return json.Marshal(fields)
}

type historyResponse struct {
	Items      []record.Record `json:"items"`
	NextCursor string          `json:"next_cursor"`
}

func (c *Client) FetchHistory(ctx context.Context, cursor string, limit int) (feed.Page, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	endpoint := c.baseURL + "/api/logs"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	request, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return feed.Page{}, err
	}
	response := historyResponse{}
	if err := c.do(request, &response); err != nil {
		return feed.Page{}, err
	}
	return feed.Page{Records: response.Items, NextCursor: response.NextCursor}, nil
}

func (c *Client) ListMedications(ctx context.Context) ([]record.Medication, error) {
	request, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/api/medications", nil)
	if err != nil {
		return nil, err
	}
	response := struct {
		Items []record.Medication `json:"items"`
	}{}
	if err := c.do(request, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// Catalog loads the medication catalog used to validate and match doses.
func (c *Client) Catalog(ctx context.Context) (record.Catalog, error) {
	medications, err := c.ListMedications(ctx)
	if err != nil {
		return record.Catalog{}, err
	}
	return record.NewCatalog(medications), nil
}

func (c *Client) AddMedication(ctx context.Context, name string, dose string) (record.Medication, error) {
	body, err := json.Marshal(map[string]string{"name": name, "dose": dose})
	if err != nil {
		return record.Medication{}, err
	}
	request, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/api/medications", bytes.NewReader(body))
	if err != nil {
		return record.Medication{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	medication := record.Medication{}
	if err := c.do(request, &medication); err != nil {
		return record.Medication{}, err
	}
	return medication, nil
}

func (c *Client) DeleteMedication(ctx context.Context, id string) error {
	request, err := c.newRequest(ctx, http.MethodDelete, c.baseURL+"/api/medications/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(request, nil)
}

// ExportCSV downloads the CSV export for the inclusive day range; empty
// bounds are open.
func (c *Client) ExportCSV(ctx context.Context, from string, to string) ([]byte, error) {
	query := url.Values{}
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}
	endpoint := c.baseURL + "/api/export/csv"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	request, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "text/csv")
	return c.send(request)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email string, password string) (string, error) {
	return c.authenticate(ctx, "/api/auth/login", email, password)
}

func (c *Client) Register(ctx context.Context, email string, password string) (string, error) {
	return c.authenticate(ctx, "/api/auth/register", email, password)
}

// ChangePassword replaces a (possibly temporary) password and keeps the
// token issued for the new one.
func (c *Client) ChangePassword(ctx context.Context, email string, current string, next string) (string, error) {
	return c.postCredentials(ctx, "/api/auth/change-password", map[string]string{
		"email":            email,
		"current_password": current,
		"new_password":     next,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, email string, password string) (string, error) {
	return c.postCredentials(ctx, path, credentials{Email: email, Password: password})
}

func (c *Client) postCredentials(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	request, err := c.newRequest(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")

	response := struct {
		Token string `json:"token"`
	}{}
	if err := c.do(request, &response); err != nil {
		return "", err
	}
	c.token = response.Token
	return response.Token, nil
}

func (c *Client) newRequest(ctx context.Context, method string, endpoint string, body io.Reader) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	return request, nil
}

func (c *Client) do(request *http.Request, target any) error {
	body, err := c.send(request)
	if err != nil {
		return err
	}
	if target == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %s response: %w", request.URL.Path, err)
	}
	return nil
}

// send performs the request and returns the body of a 2xx answer.
func (c *Client) send(request *http.Request) ([]byte, error) {
	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", request.Method, request.URL.Path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", request.URL.Path, err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{StatusCode: response.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func errorMessage(body []byte) string {
	payload := struct {
		Error string `json:"error"`
	}{}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return strings.TrimSpace(payload.Error)
	}
	return strings.TrimSpace(string(body))
}
