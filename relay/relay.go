// Package relay forwards an uploaded photo to the remote reconstruction
// endpoint and returns the URL of the generated cloud.
//
// Endpoint contract: POST multipart/form-data with the image in the field
// "image". A 2xx reply is a JSON object carrying the cloud URL in "ply_url"
// ("splat_url" and "url" are accepted too). The URL must be absolute http(s).
// Any other reply is an error; requests are never retried.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout   = 120 * time.Second
	DefaultField     = "image"
	maxResponseBytes = 1 << 20
	maxMessageLen    = 200
)

var (
	// ErrUpstreamRejected is a 4xx reply: the endpoint refused the input.
	ErrUpstreamRejected = errors.New("reconstruction service rejected the image")
	// ErrUpstream is a 5xx reply or a transport failure.
	ErrUpstream = errors.New("reconstruction service failed")
	// ErrUpstreamTimeout is returned when the deadline expired.
	ErrUpstreamTimeout = errors.New("reconstruction service timed out")
	// ErrBadResponse is a 2xx reply without a usable cloud URL.
	ErrBadResponse = errors.New("reconstruction service returned an invalid response")
	// ErrNotConfigured is returned when no endpoint is set.
	ErrNotConfigured = errors.New("reconstruction endpoint is not configured")
)

// Error carries the upstream status and message along with its kind.
type Error struct {
	Kind    error
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

type Config struct {
	Endpoint string        `yaml:"endpoint" env:"ENDPOINT"`
	Token    string        `yaml:"token" env:"TOKEN"`
	Field    string        `yaml:"field" env:"FIELD"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

func DefaultConfig() Config {
	return Config{
		Field:   DefaultField,
		Timeout: DefaultTimeout,
	}
}

// Upload is the photo to reconstruct.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
	// RequestID is forwarded as X-Request-ID when set.
	RequestID string
}

// Result is the reply of a successful reconstruction.
type Result struct {
	URL      string
	Duration time.Duration
}

type reply struct {
	PlyURL   string `json:"ply_url"`
	SplatURL string `json:"splat_url"`
	URL      string `json:"url"`
	Error    string `json:"error"`
	Message  string `json:"message"`
	Detail   string `json:"detail"`
}

func (r *reply) cloudURL() string {
	for _, u := range []string{r.PlyURL, r.SplatURL, r.URL} {
		if u != "" {
			return u
		}
	}
	return ""
}

func (r *reply) message() string {
	for _, m := range []string{r.Message, r.Error, r.Detail} {
		if m != "" {
			return m
		}
	}
	return ""
}

// Client talks to the reconstruction endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New returns a Client. A nil httpClient uses http.DefaultClient.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Field == "" {
		cfg.Field = DefaultField
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With(zap.String("component", "relay")),
	}
}

// Reconstruct uploads the photo and waits for the cloud URL.
func (c *Client) Reconstruct(ctx context.Context, up Upload) (Result, error) {
	if c.cfg.Endpoint == "" {
		return Result{}, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, c.cfg.Field, up))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, pr)
	if err != nil {
		pr.Close()
		return Result{}, fmt.Errorf("relay: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if up.RequestID != "" {
		req.Header.Set("X-Request-ID", up.RequestID)
	}

	logger := c.logger.With(zap.String("request_id", up.RequestID))
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		pr.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Warn("reconstruction timed out", zap.Duration("timeout", c.cfg.Timeout))
			return Result{}, &Error{Kind: ErrUpstreamTimeout}
		}
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		logger.Warn("reconstruction request failed", zap.Error(err))
		return Result{}, &Error{Kind: ErrUpstream, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &Error{Kind: ErrUpstreamTimeout, Status: resp.StatusCode}
		}
		return Result{}, &Error{Kind: ErrUpstream, Status: resp.StatusCode, Message: err.Error()}
	}
	elapsed := time.Since(start)

	var r reply
	jsonErr := json.Unmarshal(body, &r)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		logger.Info("reconstruction rejected", zap.Int("status", resp.StatusCode))
		return Result{}, &Error{Kind: ErrUpstreamRejected, Status: resp.StatusCode, Message: upstreamMessage(&r, body, jsonErr)}
	default:
		logger.Warn("reconstruction failed", zap.Int("status", resp.StatusCode))
		return Result{}, &Error{Kind: ErrUpstream, Status: resp.StatusCode, Message: upstreamMessage(&r, body, jsonErr)}
	}

	if jsonErr != nil {
		return Result{}, &Error{Kind: ErrBadResponse, Status: resp.StatusCode, Message: "reply is not JSON"}
	}
	u := r.cloudURL()
	if u == "" {
		return Result{}, &Error{Kind: ErrBadResponse, Status: resp.StatusCode, Message: "reply has no ply_url"}
	}
	if err := validateCloudURL(u); err != nil {
		return Result{}, &Error{Kind: ErrBadResponse, Status: resp.StatusCode, Message: err.Error()}
	}

	logger.Info("reconstruction finished", zap.Duration("elapsed", elapsed))
	return Result{URL: u, Duration: elapsed}, nil
}

func writeForm(mw *multipart.Writer, field string, up Upload) error {
	name := up.Filename
	if name == "" {
		name = "image"
	}
	ct := up.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return err
	}
	return mw.Close()
}

func upstreamMessage(r *reply, body []byte, jsonErr error) string {
	m := ""
	if jsonErr == nil {
		m = r.message()
	} else {
		m = strings.TrimSpace(string(body))
	}
	if len(m) > maxMessageLen {
		m = m[:maxMessageLen]
	}
	return m
}

func validateCloudURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid cloud url: %v", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("cloud url %q is not absolute http(s)", raw)
	}
	return nil
}
