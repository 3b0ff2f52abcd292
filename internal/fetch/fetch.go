// SPDX-License-Identifier: MPL-2.0

// Package fetch retrieves hook sources from a peer over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// BranchHeader carries the repository branch the peer should serve from.
	BranchHeader = "X-Relay-Branch"

	// DefaultProtocol is used when Options.Protocol is empty.
	DefaultProtocol = "http"

	// maxSourceSize caps a single fetched module.
	maxSourceSize = 8 << 20
)

var (
	// ErrFetch is the sentinel wrapped by FetchError when no transport error applies.
	ErrFetch = errors.New("fetch failed")

	// ErrHTMLResponse reports a peer answering with a page instead of a module,
	// typically an SPA fallback for a missing path.
	ErrHTMLResponse = errors.New("peer returned HTML instead of a module")

	// ErrBadStatus reports a non-2xx response.
	ErrBadStatus = errors.New("unexpected HTTP status")
)

type (
	// Options configures a Client.
	Options struct {
		// Protocol is "http" or "https".
		Protocol string
		// Branch, when set, is sent as the X-Relay-Branch header.
		Branch string
		// Headers are added to every request.
		Headers map[string]string
		// Timeout bounds a whole request. Zero means no timeout.
		Timeout time.Duration
		// Transport overrides the base transport; nil means http.DefaultTransport.
		Transport http.RoundTripper
	}

	// Client fetches module sources from peers.
	Client struct {
		protocol string
		branch   string
		headers  map[string]string
		http     *http.Client
	}

	// Source is a fetched module body.
	Source struct {
		URL         string
		ContentType string
		Body        string
	}

	// FetchError reports a transport failure, non-2xx status or HTML response.
	FetchError struct {
		URL         string
		Status      int
		ContentType string
		Err         error
	}
)

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	case e.ContentType != "":
		return fmt.Sprintf("fetch %s: status %d (%s): %v", e.URL, e.Status, e.ContentType, e.Err)
	default:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
}

// Unwrap returns the underlying error for errors.Is() compatibility.
func (e *FetchError) Unwrap() error { return e.Err }

// New creates a Client. The transport is wrapped with OpenTelemetry
// instrumentation, so fetches join the caller's trace.
func New(opts Options) *Client {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	protocol := strings.TrimSuffix(opts.Protocol, "://")
	if protocol == "" {
		protocol = DefaultProtocol
	}
	return &Client{
		protocol: protocol,
		branch:   opts.Branch,
		headers:  maps.Clone(opts.Headers),
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: otelhttp.NewTransport(base,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "fetch " + r.URL.Path
				}),
			),
		},
	}
}

// URL builds the address of canonicalPath on host.
func (c *Client) URL(host, canonicalPath string) string {
	return c.protocol + "://" + host + canonicalPath
}

// Fetch GETs canonicalPath from host. extra headers override configured ones.
// A non-2xx status or an HTML content type is a *FetchError; the body of such
// a response is never returned.
func (c *Client) Fetch(ctx context.Context, host, canonicalPath string, extra map[string]string) (*Source, error) {
	url := c.URL(host, canonicalPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/javascript, text/javascript, text/plain, */*;q=0.1")
	if c.branch != "" {
		req.Header.Set(BranchHeader, c.branch)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Status: resp.StatusCode, ContentType: contentType, Err: ErrBadStatus}
	}
	if isHTML(contentType) {
		return nil, &FetchError{URL: url, Status: resp.StatusCode, ContentType: contentType, Err: ErrHTMLResponse}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize+1))
	if err != nil {
		return nil, &FetchError{URL: url, Status: resp.StatusCode, ContentType: contentType, Err: err}
	}
	if len(body) > maxSourceSize {
		return nil, &FetchError{URL: url, Status: resp.StatusCode, ContentType: contentType,
			Err: fmt.Errorf("%w: module larger than %d bytes", ErrFetch, maxSourceSize)}
	}

	return &Source{URL: url, ContentType: contentType, Body: string(body)}, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
