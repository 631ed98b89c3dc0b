package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// Default client settings.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultUserAgent   = "linkcrawl"
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// maxRedirects bounds redirect chains followed for one fetch.
	maxRedirects = 10
)

// Client fetches page bodies over HTTP.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	maxBodySize int64
}

// clientOptions collects Option values before the transport is built.
type clientOptions struct {
	timeout      time.Duration
	userAgent    string
	maxBodySize  int64
	cookie       string
	headers      map[string]string
	proxyAddress string
	transport    http.RoundTripper
}

// Option configures a Client.
type Option func(*clientOptions)

// WithTimeout sets the per-request timeout, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) {
		o.userAgent = ua
	}
}

// WithMaxBodySize limits how many body bytes are read per page.
// Longer bodies are truncated, not rejected.
func WithMaxBodySize(size int64) Option {
	return func(o *clientOptions) {
		if size > 0 {
			o.maxBodySize = size
		}
	}
}

// WithCookie sets a raw cookie string ("name=value; other=value") sent with every request.
func WithCookie(cookie string) Option {
	return func(o *clientOptions) {
		o.cookie = cookie
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *clientOptions) {
		o.headers = headers
	}
}

// WithProxy routes all connections through the SOCKS5 proxy at host:port.
func WithProxy(address string) Option {
	return func(o *clientOptions) {
		o.proxyAddress = address
	}
}

// WithTransport replaces the base transport. Mostly useful in tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.transport = rt
	}
}

// NewClient creates a Client. It returns ErrInvalidProxyAddress when a proxy
// address is configured but malformed; it does not contact the proxy.
func NewClient(opts ...Option) (*Client, error) {
	o := &clientOptions{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(o)
	}

	base := o.transport
	if base == nil {
		transport, err := newTransport(o.proxyAddress)
		if err != nil {
			return nil, err
		}
		base = transport
	}

	if o.cookie != "" || len(o.headers) > 0 {
		base = &headerInjectingTransport{
			base:    base,
			cookie:  o.cookie,
			headers: o.headers,
		}
	}

	return &Client{
		httpClient: &http.Client{
			Transport: base,
			Timeout:   o.timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:   o.userAgent,
		maxBodySize: o.maxBodySize,
	}, nil
}

// newTransport clones the default transport and, when proxyAddress is set,
// dials through a SOCKS5 proxy.
func newTransport(proxyAddress string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	if proxyAddress == "" {
		return transport, nil
	}

	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	transport.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return transport, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// Fetch performs a GET request for u and returns the body, truncated to the
// configured maximum size. Any failure is returned as a *FetchError.
func (c *Client) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	target := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}

// headerInjectingTransport adds the configured cookie and headers to every
// request, redirects included.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
