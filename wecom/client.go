// Package wecom implements a client for the WeCom third-party service-suite
// API. The client brokers two classes of bearer credentials - one suite token
// shared by the whole process and one corp token per authorized tenant - and
// wraps every outbound call in a bounded retry that transparently refreshes a
// credential the remote service has rejected.
package wecom

import (
	"net/http"
	"sync"

	"github.com/jrsteele09/go-wecom-suite/token"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL    = "https://qyapi.weixin.qq.com"
	defaultInstallURL = "https://open.work.weixin.qq.com/3rdapp/install"

	// DefaultRetryBudget bounds the credential refresh-and-retry loop for a
	// single logical request.
	DefaultRetryBudget = 3
)

// Doer issues a single HTTP exchange. *http.Client satisfies it; tests and
// hosts with bespoke transports inject their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client brokers suite and corp access tokens and executes API requests.
type Client struct {
	suiteID     string
	suiteSecret string

	ticketMu    sync.RWMutex
	suiteTicket string

	baseURL    string
	installURL string

	store      token.Store
	corpTokens *token.CorpCache
	permCodes  PermanentCodeSource

	httpClient    Doer
	retryBudget   int
	defaultHeader http.Header
	log           zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP transport. Timeouts and cancellation are
// the transport's responsibility; the client adds no timeout layer of its
// own.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

// WithTokenStore replaces the suite token store. Multi-process deployments
// must supply a store backed by shared storage.
func WithTokenStore(s token.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithPermanentCodeSource replaces the corp-id to permanent-code lookup.
func WithPermanentCodeSource(s PermanentCodeSource) Option {
	return func(c *Client) { c.permCodes = s }
}

// WithLogger attaches a logger. The default discards everything. Credentials
// are never logged regardless of level.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithBaseURL points the client at a different API host, typically a test
// server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRetryBudget overrides the number of credential refreshes permitted per
// logical request.
func WithRetryBudget(n int) Option {
	return func(c *Client) { c.retryBudget = n }
}

// WithSuiteTicket seeds the rotating suite ticket, normally recovered from
// storage at startup before the first push arrives.
func WithSuiteTicket(ticket string) Option {
	return func(c *Client) { c.suiteTicket = ticket }
}

// New builds a Client for one suite identity. The identity is fixed for the
// client's lifetime; only the suite ticket rotates (see SetSuiteTicket).
func New(suiteID, suiteSecret string, options ...Option) *Client {
	c := &Client{
		suiteID:     suiteID,
		suiteSecret: suiteSecret,
		baseURL:     defaultBaseURL,
		installURL:  defaultInstallURL,
		corpTokens:  token.NewCorpCache(),
		retryBudget: DefaultRetryBudget,
		log:         zerolog.Nop(),
		defaultHeader: http.Header{
			"Content-Type": []string{"application/json"},
			"User-Agent":   []string{"go-wecom-suite"},
		},
	}

	for _, opt := range options {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.store == nil {
		c.store = token.NewInMemoryStore(c.log)
	}
	if c.permCodes == nil {
		c.permCodes = NewStaticPermanentCodes()
	}

	return c
}

// SuiteID returns the configured suite identifier.
func (c *Client) SuiteID() string {
	return c.suiteID
}

// SetSuiteTicket replaces the suite ticket used by future suite-token
// fetches. Already-cached tokens are unaffected. The remote service pushes a
// fresh ticket periodically; the host application is responsible for routing
// that push here.
func (c *Client) SetSuiteTicket(ticket string) {
	c.ticketMu.Lock()
	defer c.ticketMu.Unlock()

	c.suiteTicket = ticket
}

func (c *Client) currentSuiteTicket() string {
	c.ticketMu.RLock()
	defer c.ticketMu.RUnlock()

	return c.suiteTicket
}

// PermanentCodes exposes the configured permanent-code source so hosts can
// register codes obtained from the authorization flow.
func (c *Client) PermanentCodes() PermanentCodeSource {
	return c.permCodes
}
