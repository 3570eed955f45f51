package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-wecom-suite/internal/jsoncodec"
	"github.com/jrsteele09/go-wecom-suite/token"
	"github.com/pkg/errors"
)

// RefreshFunc re-acquires the credential presented by a request after the
// remote service rejected it. A nil RefreshFunc marks the credential as
// externally supplied: the executor does not own it and will not refresh it.
type RefreshFunc func(ctx context.Context) (token.AccessToken, error)

// RequestOptions shape one logical API call. The zero value is a GET with
// client-default headers and no retry.
type RequestOptions struct {
	// Method defaults to GET.
	Method string

	// Header entries are merged key-by-key over the client defaults, so
	// caller headers augment rather than replace them.
	Header http.Header

	// Body, when non-nil, is JSON-encoded into the request body.
	Body interface{}

	// Retries bounds the credential refresh-and-retry loop. Zero means the
	// client budget. Only meaningful with a Refresh hook.
	Retries int

	// CredentialParam is the query parameter carrying the bearer credential,
	// rewritten in place on retry. Defaults to "access_token".
	CredentialParam string

	// Refresh re-acquires a broker-owned credential after an invalidity
	// signal. Leave nil for caller-managed credentials.
	Refresh RefreshFunc
}

// Result is one successful API exchange.
type Result struct {
	StatusCode int
	Header     http.Header

	// Body is the raw response body, JSON or not.
	Body []byte

	json interface{}
}

// JSON returns the decoded body (numbers as json.Number), or nil when the
// response was not JSON.
func (r *Result) JSON() interface{} { return r.json }

// Bind decodes the body into v through the sanitizing codec.
func (r *Result) Bind(v interface{}) error {
	return jsoncodec.Unmarshal(r.Body, v)
}

// Request executes one logical API call. Non-success HTTP statuses fail as
// *TransportError without retry. JSON bodies are decoded through the
// sanitizing codec; a decode failure is a *ParseError carrying the raw body.
// A non-zero errcode in the envelope fails as *APIError, except when the
// code signals credential invalidity, the retry budget is not exhausted and
// the credential is broker-owned: then the credential is refreshed, the
// CredentialParam query parameter is rewritten and the call is re-issued.
func (c *Client) Request(ctx context.Context, rawurl string, opts *RequestOptions) (*Result, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	credParam := opts.CredentialParam
	if credParam == "" {
		credParam = "access_token"
	}

	retries := 0
	if opts.Refresh != nil {
		retries = opts.Retries
		if retries == 0 {
			retries = c.retryBudget
		}
	}

	header := mergeHeader(c.defaultHeader, opts.Header)

	var body []byte
	if opts.Body != nil {
		encoded, err := encodeJSONBody(opts.Body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		body = encoded
	}

	requestID := uuid.NewString()
	reqURL := rawurl

	for attempt := 1; ; attempt++ {
		res, apiErr, err := c.send(ctx, method, reqURL, header, body, requestID, attempt, credParam)
		if err != nil {
			return nil, err
		}
		if apiErr == nil {
			return res, nil
		}

		if apiErr.CredentialInvalid() && retries > 0 {
			retries--

			fresh, err := opts.Refresh(ctx)
			if err != nil {
				return nil, errors.Wrap(err, "refresh credential")
			}

			reqURL, err = replaceQueryParam(reqURL, credParam, fresh.Credential())
			if err != nil {
				return nil, err
			}

			c.log.Debug().
				Str("request_id", requestID).
				Int("attempt", attempt).
				Int64("errcode", apiErr.Code).
				Msg("credential rejected, retrying with refreshed token")
			continue
		}

		return nil, apiErr
	}
}

func (c *Client) send(ctx context.Context, method, reqURL string, header http.Header, body []byte, requestID string, attempt int, credParam string) (*Result, *APIError, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build request")
	}
	req.Header = header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "http request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read response body")
	}

	c.log.Debug().
		Str("request_id", requestID).
		Int("attempt", attempt).
		Str("method", method).
		Str("url", redactQueryParam(reqURL, credParam)).
		Int("status", resp.StatusCode).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 204 {
		return nil, nil, &TransportError{StatusCode: resp.StatusCode, Body: raw}
	}

	res := &Result{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}

	if !isJSONContentType(resp.Header.Get("Content-Type")) {
		return res, nil, nil
	}

	parsed, err := jsoncodec.Parse(raw)
	if err != nil {
		return nil, nil, &ParseError{RawBody: raw, Err: err}
	}
	res.json = parsed

	if apiErr := envelopeError(parsed); apiErr != nil {
		return res, apiErr, nil
	}
	return res, nil, nil
}

// envelopeError extracts the application-level {errcode, errmsg} envelope.
// errcode zero or a body without an envelope is success.
func envelopeError(parsed interface{}) *APIError {
	m, ok := parsed.(map[string]interface{})
	if !ok {
		return nil
	}
	num, ok := m["errcode"].(json.Number)
	if !ok {
		return nil
	}
	code, err := num.Int64()
	if err != nil || code == 0 {
		return nil
	}
	msg, _ := m["errmsg"].(string)
	return &APIError{Code: code, Message: msg}
}

// mergeHeader lays caller entries over the defaults key by key.
func mergeHeader(defaults, overrides http.Header) http.Header {
	merged := defaults.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	for k, vs := range overrides {
		merged[http.CanonicalHeaderKey(k)] = vs
	}
	return merged
}

func encodeJSONBody(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "json")
}

// replaceQueryParam rewrites a single query parameter, leaving every other
// parameter of the caller-built URL intact.
func replaceQueryParam(rawurl, key, value string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", errors.Wrap(err, "parse url")
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redactQueryParam(rawurl, key string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return rawurl
	}
	q := u.Query()
	if q.Has(key) {
		q.Set(key, "REDACTED")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
