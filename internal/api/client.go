// Package api is the typed HTTP client for the signalweaver ECG backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/ecgscope/internal/model"
)

const (
	// DefaultTimeout bounds a single backend request.
	DefaultTimeout = 60 * time.Second

	apiPrefix       = "/api"
	requestIDHeader = "X-Request-ID"
)

// Envelope is the uniform response wrapper used by every endpoint.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TraceQuery selects the window returned by Trace. Nil fields leave the
// server-side value in place.
type TraceQuery struct {
	Position     *float64
	WindowLength *float64
}

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the backend. It keeps the session cookie that binds the
// loaded recording to this client.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a Client for the backend at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("server url is empty")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https: %q", baseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}
	return &Client{base: base, http: httpClient}, nil
}

type loadRequest struct {
	FilePath string `json:"file_path"`
}

type loadResponse struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

type navigateRequest struct {
	Direction    string   `json:"direction"`
	WindowLength *float64 `json:"window_length"`
}

type windowRequest struct {
	WindowLength float64 `json:"window_length"`
}

type windowResponse struct {
	WindowLength float64            `json:"window_length"`
	WindowConfig model.WindowConfig `json:"window_config"`
}

type poincareNavigateRequest struct {
	PointNumber int `json:"point_number"`
}

type positionResponse struct {
	Position float64 `json:"position"`
}

type peakRequest struct {
	TimePosition float64 `json:"time_position"`
	Annotation   *int    `json:"annotation,omitempty"`
}

type changedResponse struct {
	Changed     bool `json:"changed"`
	ChangeCount *int `json:"change_count"`
}

type invertResponse struct {
	Inverted bool `json:"inverted"`
}

// ListFiles lists the recordings available on the server.
func (c *Client) ListFiles(ctx context.Context) ([]model.FileDescriptor, error) {
	return call[[]model.FileDescriptor](ctx, c, "list files", http.MethodGet, "/files", nil, nil)
}

// LoadFile loads the recording at path into the server session and returns
// its display name.
func (c *Client) LoadFile(ctx context.Context, path string) (string, error) {
	resp, err := call[loadResponse](ctx, c, "load file", http.MethodPost, "/ecg/load", nil, loadRequest{FilePath: path})
	if err != nil {
		return "", err
	}
	return resp.Filename, nil
}

// Metadata returns metadata of the loaded recording.
func (c *Client) Metadata(ctx context.Context) (model.Metadata, error) {
	return call[model.Metadata](ctx, c, "get metadata", http.MethodGet, "/ecg/metadata", nil, nil)
}

// Trace returns the signal window selected by q.
func (c *Client) Trace(ctx context.Context, q TraceQuery) (model.TraceWindow, error) {
	query := url.Values{}
	if q.Position != nil {
		query.Set("position", formatFloat(*q.Position))
	}
	if q.WindowLength != nil {
		query.Set("window_length", formatFloat(*q.WindowLength))
	}
	return call[model.TraceWindow](ctx, c, "get trace", http.MethodGet, "/ecg/trace", query, nil)
}

// Poincare returns the Poincaré dataset. The server rejects the call when
// too few beats are annotated.
func (c *Client) Poincare(ctx context.Context) (model.PoincareDataset, error) {
	return call[model.PoincareDataset](ctx, c, "get poincare", http.MethodGet, "/ecg/poincare", nil, nil)
}

// Invert toggles signal polarity and reports the new state.
func (c *Client) Invert(ctx context.Context) (bool, error) {
	resp, err := call[invertResponse](ctx, c, "invert", http.MethodPost, "/ecg/invert", nil, nil)
	if err != nil {
		return false, err
	}
	return resp.Inverted, nil
}

// Navigate asks the server to move the window one step in dir and returns
// the new position.
func (c *Client) Navigate(ctx context.Context, dir model.Direction, windowLength float64) (float64, error) {
	wireDir, err := wireDirection(dir)
	if err != nil {
		return 0, fmt.Errorf("navigate: %w", err)
	}
	req := navigateRequest{Direction: wireDir}
	if windowLength > 0 {
		req.WindowLength = &windowLength
	}
	resp, err := call[positionResponse](ctx, c, "navigate", http.MethodPost, "/ecg/navigate", nil, req)
	if err != nil {
		return 0, err
	}
	return resp.Position, nil
}

// SetWindowLength changes the server-side window length.
func (c *Client) SetWindowLength(ctx context.Context, seconds float64) (float64, error) {
	resp, err := call[windowResponse](ctx, c, "set window length", http.MethodPost, "/ecg/window", nil, windowRequest{WindowLength: seconds})
	if err != nil {
		return 0, err
	}
	return resp.WindowLength, nil
}

// NavigatePoincare resolves a Poincaré point ordinal to a window position.
func (c *Client) NavigatePoincare(ctx context.Context, pointNumber int) (float64, error) {
	resp, err := call[positionResponse](ctx, c, "navigate poincare", http.MethodPost, "/ecg/navigate/poincare", nil, poincareNavigateRequest{PointNumber: pointNumber})
	if err != nil {
		return 0, err
	}
	return resp.Position, nil
}

// ClassifyPeak relabels the peak nearest to timePosition.
func (c *Client) ClassifyPeak(ctx context.Context, timePosition float64, annotation model.Annotation) (bool, error) {
	a := int(annotation)
	resp, err := call[changedResponse](ctx, c, "classify peak", http.MethodPost, "/ecg/peak/classify", nil, peakRequest{TimePosition: timePosition, Annotation: &a})
	if err != nil {
		return false, err
	}
	return resp.Changed, nil
}

// InsertPeak inserts a beat near timePosition.
func (c *Client) InsertPeak(ctx context.Context, timePosition float64) (bool, error) {
	resp, err := call[changedResponse](ctx, c, "insert peak", http.MethodPost, "/ecg/peak/insert", nil, peakRequest{TimePosition: timePosition})
	if err != nil {
		return false, err
	}
	return resp.Changed, nil
}

// RemovePeak removes the beat at or after timePosition.
func (c *Client) RemovePeak(ctx context.Context, timePosition float64) error {
	_, err := call[changedResponse](ctx, c, "remove peak", http.MethodPost, "/ecg/peak/remove", nil, peakRequest{TimePosition: timePosition})
	return err
}

// Save persists annotations on the server.
func (c *Client) Save(ctx context.Context) error {
	_, err := call[json.RawMessage](ctx, c, "save", http.MethodPost, "/ecg/save", nil, nil)
	return err
}

// ExportURL returns the download location of the RR-interval export.
func (c *Client) ExportURL() string {
	return c.endpoint("/ecg/export/rr", nil)
}

// DownloadExport streams the RR-interval export into w and returns the file
// name suggested by the server.
func (c *Client) DownloadExport(ctx context.Context, w io.Writer) (string, error) {
	const op = "export"
	resp, err := c.do(ctx, op, http.MethodGet, "/ecg/export/rr", nil, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, derr := decodeEnvelope[json.RawMessage](op, resp)
		if derr != nil {
			return "", derr
		}
		return "", &TransportError{Op: op, Err: fmt.Errorf("unexpected status: %s", resp.Status)}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", &TransportError{Op: op, Err: fmt.Errorf("failed to read export: %w", err)}
	}
	return attachmentName(resp.Header.Get("Content-Disposition")), nil
}

func call[T any](ctx context.Context, c *Client, op, method, path string, query url.Values, body any) (T, error) {
	var zero T
	resp, err := c.do(ctx, op, method, path, query, body)
	if err != nil {
		return zero, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return decodeEnvelope[T](op, resp)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	return resp, nil
}

func decodeEnvelope[T any](op string, resp *http.Response) (T, error) {
	var zero T
	var env Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return zero, &TransportError{Op: op, Err: fmt.Errorf("unexpected status: %s", resp.Status)}
		}
		return zero, &TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !env.Success {
		return zero, &DomainError{Op: op, Status: resp.StatusCode, Message: env.Error}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return zero, nil
	}
	var data T
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return zero, &TransportError{Op: op, Err: fmt.Errorf("failed to decode data: %w", err)}
	}
	return data, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + apiPrefix + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func wireDirection(dir model.Direction) (string, error) {
	switch dir {
	case model.DirectionPrevious:
		return "left", nil
	case model.DirectionNext:
		return "right", nil
	default:
		return "", errors.New("unknown direction " + strconv.Quote(string(dir)))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
