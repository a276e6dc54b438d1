package http

import (
	"context"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/logger"
)

const (
	// MaxResponseSize limits response body to 50MB to prevent memory exhaustion
	MaxResponseSize = 50 * 1024 * 1024

	// Default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second
)

// Request is what the dispatcher sends
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    string
}

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	Timeout                time.Duration
	MaxResponseBytes       int64
	BlockMetadataEndpoints bool
	Transport              http.RoundTripper
}

// Client issues single-shot requests and never judges the status code
type Client struct {
	client           *http.Client
	maxResponseBytes int64
	blockMetadata    bool
	log              *zap.SugaredLogger
}

// NewClient creates a new HTTP client
func NewClient(opts Options, log *zap.SugaredLogger) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = MaxResponseSize
	}
	return &Client{
		client: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		maxResponseBytes: maxBytes,
		blockMetadata:    opts.BlockMetadataEndpoints,
		log:              logger.Component(log, "dispatcher"),
	}
}

// Dispatch sends req once and returns a Success for any HTTP response or a
// Failure for transport-level errors. Duration is measured in both cases.
func (c *Client) Dispatch(ctx context.Context, req Request) Outcome {
	log := c.log.With(logger.FieldMethod, req.Method, logger.FieldURL, req.URL)

	start := time.Now()
	elapsed := func() int64 {
		return time.Since(start).Round(time.Millisecond).Milliseconds()
	}

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		log.Debugw("Request could not be built", logger.FieldError, err)
		return newFailure(err, elapsed())
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Debugw("Transport failure", logger.FieldError, err)
		return newFailure(err, elapsed())
	}
	defer resp.Body.Close()

	// Read response body with size limit to prevent memory exhaustion
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		log.Debugw("Reading response body failed", logger.FieldError, err)
		return newFailure(err, elapsed())
	}
	duration := elapsed()

	if int64(len(respBody)) > c.maxResponseBytes {
		respBody = respBody[:c.maxResponseBytes]
		log.Warnw("Response body truncated", "limit_bytes", c.maxResponseBytes)
	}

	headers := flattenHeaders(resp.Header)
	data := NewPayload(respBody)

	success := &Success{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    headers,
		Data:       data,
		DurationMs: duration,
		SizeBytes:  responseSize(resp.Header, data),
	}
	log.Debugw("Response received",
		logger.FieldStatus, success.Status,
		logger.FieldDurationMS, success.DurationMs,
		logger.FieldSize, success.SizeBytes,
	)
	return success
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		return nil, errors.Invalidf("method is required")
	}

	target, err := c.targetURL(req.URL, req.Query)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	// Default Content-Type for requests with body
	if req.Body != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return httpReq, nil
}

// targetURL validates rawURL and merges query parameters into it
func (c *Client) targetURL(rawURL string, query map[string]string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "invalid URL"), errors.ErrInvalidRequest)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", errors.Invalidf("unsupported URL scheme: %q (only http and https are allowed)", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return "", errors.Invalidf("URL must have a hostname")
	}

	if c.blockMetadata && isCloudMetadataEndpoint(hostname) {
		return "", errors.Invalidf("blocked request to cloud metadata endpoint: %s", hostname)
	}
	if isPrivateOrLoopback(hostname) {
		c.log.Debugw("Dispatching to private or loopback address", logger.FieldURL, rawURL)
	}

	if len(query) > 0 {
		values := parsed.Query()
		for key, value := range query {
			values.Set(key, value)
		}
		parsed.RawQuery = values.Encode()
	}

	return parsed.String(), nil
}

func newFailure(err error, durationMs int64) *Failure {
	return &Failure{
		ErrorMessage: err.Error(),
		DurationMs:   durationMs,
		Err:          errors.Mark(err, errors.ErrTransport),
	}
}

// flattenHeaders joins repeated header values the way they appear on the wire
func flattenHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) > 0 {
			headers[key] = strings.Join(values, ", ")
		}
	}
	return headers
}

// statusText strips the numeric code from "404 Not Found"
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// responseSize prefers the Content-Length header and otherwise estimates
// from the serialized payload
func responseSize(h http.Header, data Payload) int64 {
	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return data.SerializedSize()
}

func isPrivateOrLoopback(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	addr, err := netip.ParseAddr(hostname)
	if err != nil {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}

// isCloudMetadataEndpoint checks if the hostname is a cloud metadata service.
// Only the dispatched host is checked; redirect targets are not.
func isCloudMetadataEndpoint(hostname string) bool {
	metadataHosts := map[string]bool{
		"169.254.169.254":          true, // AWS, GCP, Azure metadata
		"metadata.google.internal": true, // GCP metadata
		"metadata.goog":            true, // GCP metadata alternative
		"100.100.100.200":          true, // Alibaba Cloud metadata
		"169.254.170.2":            true, // AWS ECS task metadata
	}

	return metadataHosts[strings.ToLower(hostname)]
}
