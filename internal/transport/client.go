package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/researchstream/internal/model"
	"golang.org/x/net/proxy"
)

// DefaultResearchPath is the path of the streaming endpoint.
const DefaultResearchPath = "/research"

// Client issues research requests.
type Client struct {
	server       *url.URL
	researchPath string
	timeout      time.Duration
	proxyAddress string
	cookie       string
	headers      map[string]string
	userAgent    string
	logger       *slog.Logger
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request including reading the body. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithResearchPath changes the endpoint path.
func WithResearchPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.researchPath = path
		}
	}
}

// WithProxy routes requests through the SOCKS5 proxy at address.
func WithProxy(address string) Option {
	return func(c *Client) { c.proxyAddress = address }
}

// WithCookie sends cookie with every request.
func WithCookie(cookie string) Option {
	return func(c *Client) { c.cookie = cookie }
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) { c.headers = headers }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the underlying HTTP client. Proxy and timeout
// options are ignored when it is set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the research app at serverURL.
func New(serverURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServerURL, serverURL)
	}

	c := &Client{
		server:       u,
		researchPath: DefaultResearchPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.httpClient == nil {
		hc, err := c.newHTTPClient()
		if err != nil {
			return nil, err
		}
		c.httpClient = hc
	}

	hc := *c.httpClient
	hc.Transport = &headerInjectingTransport{
		base:      transportOrDefault(hc.Transport),
		cookie:    c.cookie,
		headers:   c.headers,
		userAgent: c.userAgent,
	}
	c.httpClient = &hc

	return c, nil
}

func (c *Client) newHTTPClient() (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.proxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
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
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}, nil
}

func transportOrDefault(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}

// Server returns the base URL of the research app.
func (c *Client) Server() string {
	return c.server.String()
}

// ProxyAddress returns the configured proxy address, if any.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// ResearchURL returns the request URL for q.
func (c *Client) ResearchURL(q model.Query) string {
	u := c.server.JoinPath(c.researchPath)
	u.RawQuery = q.Encode()
	return u.String()
}

// Research sends the research request and returns the response with its
// body unread. The caller must close the body.
func (c *Client) Research(ctx context.Context, q model.Query) (*http.Response, error) {
	target := c.ResearchURL(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build research request: %w", err)
	}
	req.Header.Set("Content-Type", "text/html")

	c.logger.Debug("sending research request",
		"url", target,
		"company", q.Company,
		"criteria", q.Criteria.String(),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("research request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("research endpoint returned non-success status",
			"status", resp.StatusCode,
			"url", target,
		)
	}

	return resp, nil
}

// CheckProxy verifies the configured proxy speaks SOCKS5.
func (c *Client) CheckProxy(ctx context.Context) ProxyStatus {
	if c.proxyAddress == "" {
		return ProxyStatusNone
	}
	return checkSOCKS5(ctx, c.proxyAddress)
}

// headerInjectingTransport adds configured headers to every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	cookie    string
	headers   map[string]string
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}

	return t.base.RoundTrip(clone)
}
