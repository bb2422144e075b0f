// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package httpclient is the outbound HTTP Client Pool (spec.md §4.1).

One shared [Pool] is used for every outbound request the engine makes.
It rotates User-Agents, caps process-wide outbound concurrency with a
semaphore, retries with backoff classes tuned per error kind, follows
the target rule's HTTP/HTTPS scheme with a one-shot fallback on
handshake failure, and decodes response bodies with the rule's declared
encoding (falling back through UTF-8 and a charset-sniffed guess).

TLS verification is intentionally disabled: many target book sites run
expired or self-signed certificates, and the content served is public
HTML, not anything security-sensitive.
*/
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"github.com/novelforge/novelforge/internal/platform/constants"
)

// # Rotating User-Agent Pool

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// # Pool

// Pool is the shared outbound HTTP client. It is safe for concurrent use.
type Pool struct {
	client *http.Client
	sem    chan struct{} // process-wide outbound concurrency cap

	uaMu  sync.Mutex
	uaIdx int
	uas   []string
}

// New constructs a [Pool] capped at the given process-wide outbound
// concurrency.
func New(concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = constants.OutboundConcurrency
	}
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= constants.MaxRedirects {
				return fmt.Errorf("httpclient: stopped after %d redirects", constants.MaxRedirects)
			}
			return nil
		},
	}
	return &Pool{
		client: client,
		sem:    make(chan struct{}, concurrency),
		uas:    defaultUserAgents,
	}
}

// Close idles out the pool's keep-alive connections. Called once, after
// the Task Registry has drained, as the second step of the shutdown
// ordering spec.md §9 requires.
func (p *Pool) Close() {
	if transport, ok := p.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// nextUserAgent rotates through the User-Agent pool.
func (p *Pool) nextUserAgent() string {
	p.uaMu.Lock()
	defer p.uaMu.Unlock()
	ua := p.uas[p.uaIdx%len(p.uas)]
	p.uaIdx++
	return ua
}

// # Requests

// Request describes one logical outbound request.
type Request struct {
	Method   string
	URL      string
	Body     []byte
	Encoding string // declared charset, e.g. "UTF-8", "GBK", "Big5"
}

// Response is a fully read, decoded response body plus the final status.
type Response struct {
	StatusCode int
	Body       string // decoded to UTF-8 text
}

// Do executes req, retrying per spec.md §4.1's error-class policy, and
// returns the UTF-8-decoded body. Callers must pass a context carrying
// the caller's own deadline; Do layers its own per-attempt timeout on
// top and lengthens it on timeout retries.
func (p *Pool) Do(ctx context.Context, req Request) (*Response, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	attemptTimeout := constants.RequestTimeout
	targetURL := req.URL
	var lastErr error
	var lastStatus int
	attempts := 0
	schemeSwapped := false

	for attempt := 1; attempt <= constants.MaxAttempts; attempt++ {
		attempts = attempt
		resp, err := p.attempt(ctx, req, targetURL, attemptTimeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		class, retryAfter := classify(err, resp)
		if resp != nil {
			lastStatus = resp.StatusCode
		}

		if class == classNoRetry || attempt == constants.MaxAttempts {
			break
		}

		// HTTP/HTTPS one-shot fallback: on a scheme-level failure, try the
		// other scheme for the remaining attempts instead of repeating the
		// same dead scheme.
		if class == classSchemeFailure && !schemeSwapped {
			if swapped, ok := swapScheme(targetURL); ok {
				targetURL = swapped
				schemeSwapped = true
			}
		}

		if class == classTimeout {
			attemptTimeout = attemptTimeout + attemptTimeout/2
		}

		sleep := backoffFor(class, attempt, retryAfter)
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, &NetworkError{URL: req.URL, LastStatus: lastStatus, Attempts: attempts, Cause: lastErr}
}

// attempt issues exactly one HTTP round trip.
func (p *Pool) attempt(ctx context.Context, req Request, targetURL string, timeout time.Duration) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, targetURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", p.nextUserAgent())
	httpReq.Header.Set("Accept", "text/html,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		retryAfter := ParseRetryAfter(httpResp.Header.Get("Retry-After"))
		return &Response{StatusCode: httpResp.StatusCode}, &statusError{status: httpResp.StatusCode, retryAfter: retryAfter}
	}

	decoded, err := decodeBody(raw, req.Encoding, httpResp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("httpclient: decode body: %w", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: decoded}, nil
}

// # Body decoding

// decodeBody decodes raw bytes to UTF-8 text using the rule's declared
// encoding, falling back to UTF-8 passthrough, then to a best-guess from
// the Content-Type charset or a <meta charset> sniff.
func decodeBody(raw []byte, declaredEncoding, contentType string) (string, error) {
	enc := strings.ToLower(strings.TrimSpace(declaredEncoding))

	switch enc {
	case "", "utf-8", "utf8":
		if utf8.Valid(raw) {
			return string(raw), nil
		}
	case "gbk", "gb2312", "gb18030":
		return decodeWith(simplifiedchinese.GBK, raw)
	case "big5":
		return decodeWith(traditionalchinese.Big5, raw)
	}

	// Sniff from Content-Type / <meta charset>, then fall back to raw UTF-8.
	reader, sniffErr := charset.NewReader(bytes.NewReader(raw), contentType)
	if sniffErr == nil {
		sniffed, readErr := io.ReadAll(reader)
		if readErr == nil {
			return string(sniffed), nil
		}
	}
	return string(raw), nil
}

// decodeWith decodes raw bytes from enc's charset to UTF-8.
func decodeWith(enc encoding.Encoding, raw []byte) (string, error) {
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// # Error classes & retry policy

type errorClass int

const (
	classNoRetry errorClass = iota
	classTimeout
	classReset
	classServerError
	classTooManyRequests
	classSchemeFailure
)

// classify maps a transport/status error to a retry class and an
// optional caller-specified Retry-After delay.
func classify(err error, resp *Response) (errorClass, time.Duration) {
	var status *statusError
	if errors.As(err, &status) {
		switch {
		case status.status == http.StatusTooManyRequests:
			return classTooManyRequests, status.retryAfter
		case status.status >= 520 && status.status <= 522:
			return classServerError, 0
		case status.status >= 500:
			return classServerError, 0
		case status.status >= 400:
			return classNoRetry, 0
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return classTimeout, 0
	}
	if isSchemeFailure(err) {
		return classSchemeFailure, 0
	}
	if isConnReset(err) {
		return classReset, 0
	}
	return classServerError, 0
}

// isSchemeFailure reports whether err looks like a protocol mismatch
// (e.g. issuing a TLS handshake against a plain-HTTP port, or vice
// versa), which warrants a one-shot scheme swap rather than a same-scheme
// retry.
func isSchemeFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "tls") ||
		strings.Contains(msg, "certificate") ||
		strings.Contains(msg, "http: server gave http response to https client")
}

// isConnReset reports whether err is any network operation error
// (*net.OpError) or mentions a reset or refused connection.
func isConnReset(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused")
}

// backoffFor computes the sleep duration before the next attempt:
// base x 2^(attempt-1) x (1 + jitter), jitter in [0, 0.5).
func backoffFor(class errorClass, attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}

	base := constants.RetryBaseDelay
	if class == classServerError {
		base = constants.RetryServerErrorBaseDelay
	}
	if class == classReset {
		base = base + base/2
	}

	exp := 1 << (attempt - 1)
	jitter := 1 + rand.Float64()*0.5
	return time.Duration(float64(base) * float64(exp) * jitter)
}

func swapScheme(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "https"
	case "https":
		parsed.Scheme = "http"
	default:
		return "", false
	}
	return parsed.String(), true
}

// # Errors

// NetworkError is returned when a logical request fails for good: every
// attempt was used up, or a status that is never retried (4xx other
// than 429) ended it early. Attempts counts the attempts actually made.
type NetworkError struct {
	URL        string
	LastStatus int
	Attempts   int
	Cause      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("httpclient: %s failed after %d attempts (last status %d): %v", e.URL, e.Attempts, e.LastStatus, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// SourceBlocked reports whether err reflects a source-blocking response
// (403/429/Cloudflare 520-522) surviving all retries, versus a plain
// network failure.
func (e *NetworkError) SourceBlocked() bool {
	return e.LastStatus == http.StatusForbidden ||
		e.LastStatus == http.StatusTooManyRequests ||
		(e.LastStatus >= 520 && e.LastStatus <= 522)
}

type statusError struct {
	status     int
	retryAfter time.Duration
}

func (e *statusError) Error() string { return fmt.Sprintf("httpclient: status %d", e.status) }

// ParseRetryAfter extracts a Retry-After header value in seconds.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
