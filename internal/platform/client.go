package platform

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rflorenc/mapsite-admin/internal/models"
)

// Client is the HTTP adapter to the map-site API. It keeps the API session
// cookie in its own jar, so one Client belongs to exactly one operator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *Metrics
	log        logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records request counters and latencies.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient replaces the transport. The client must carry a cookie jar
// for the API session to survive across calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a Client for a backend.
func NewClient(backend *models.Backend, opts ...Option) *Client {
	transport := &http.Transport{}
	if backend.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	} else if backend.CACert != "" {
		caCertPool := x509.NewCertPool()
		if caCertPool.AppendCertsFromPEM([]byte(backend.CACert)) {
			transport.TLSClientConfig = &tls.Config{RootCAs: caCertPool}
		}
	}
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: backend.BaseURL(),
		httpClient: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   backend.Timeout,
		},
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Result is the {ok, msg} envelope the API answers mutations with.
type Result struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`
}

// Get performs a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	return c.do(req, path)
}

// PostForm sends form-encoded fields and returns the raw response body.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, path)
}

// Mutate posts form fields to a mutation endpoint and decodes the {ok, msg}
// answer. An ok:false answer is not an error: callers surface Result.Msg.
func (c *Client) Mutate(ctx context.Context, path string, form url.Values) (*Result, error) {
	body, err := c.PostForm(ctx, path, form)
	if err != nil {
		return nil, err
	}
	return ParseResult(path, body)
}

// ParseResult decodes a mutation answer.
func ParseResult(path string, body []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("POST %s: parsing response: %w", path, err)
	}
	return &res, nil
}

// UploadFile is one part of a multipart attachment upload.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// ProgressFunc receives bytes sent so far and the total body size.
type ProgressFunc func(sent, total int64)

// Upload sends files as multipart/form-data under the given field name,
// reporting byte progress while the transport reads the body.
func (c *Client) Upload(ctx context.Context, path, field string, files []UploadFile, progress ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, f.Name)
		if err != nil {
			return nil, fmt.Errorf("creating part %q: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("reading %q: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	total := int64(buf.Len())
	body := &progressReader{r: &buf, total: total, fn: progress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, path)
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(req.Method, "error", start)
		return nil, fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.observe(req.Method, fmt.Sprint(resp.StatusCode), start)
	c.log.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("api call")
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, newHTTPError(req.Method, path, resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) observe(method, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.Requests.WithLabelValues(method, status).Inc()
	c.metrics.Duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
