package wecom

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-wecom-suite/token"
	"github.com/pkg/errors"
)

type suiteTokenResponse struct {
	SuiteAccessToken string `json:"suite_access_token"`
	ExpiresIn        int64  `json:"expires_in"`
}

type corpTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// EnsureSuiteAccessToken returns a valid suite token, minting and persisting
// a fresh one when the store holds none. The broker itself never retries; a
// fetch failure propagates to the caller.
func (c *Client) EnsureSuiteAccessToken(ctx context.Context) (token.AccessToken, error) {
	snap, err := c.store.Load(ctx)
	if err != nil {
		return token.AccessToken{}, errors.Wrap(err, "load suite token")
	}
	if tok := snap.Token(); tok.Valid() {
		return tok, nil
	}

	ticket := c.currentSuiteTicket()
	if ticket == "" {
		return token.AccessToken{}, ErrSuiteTicketNotSet
	}

	res, err := c.Request(ctx, c.apiURL("/cgi-bin/service/get_suite_token", nil), &RequestOptions{
		Method: http.MethodPost,
		Body: map[string]string{
			"suite_id":     c.suiteID,
			"suite_secret": c.suiteSecret,
			"suite_ticket": ticket,
		},
	})
	if err != nil {
		return token.AccessToken{}, errors.Wrap(err, "fetch suite token")
	}

	var resp suiteTokenResponse
	if err := res.Bind(&resp); err != nil {
		return token.AccessToken{}, errors.Wrap(err, "decode suite token response")
	}

	tok := token.New(resp.SuiteAccessToken, time.Duration(resp.ExpiresIn)*time.Second)
	if err := c.store.Save(ctx, token.SnapshotOf(tok)); err != nil {
		return token.AccessToken{}, errors.Wrap(err, "save suite token")
	}

	c.log.Debug().Int64("expires_in", resp.ExpiresIn).Msg("suite token refreshed")
	return tok, nil
}

// EnsureCorpAccessToken returns a valid token for one authorized corp,
// exchanging the corp's permanent code when the cache holds none. The
// exchange itself presents the suite token, so it may transparently refresh
// that credential too.
func (c *Client) EnsureCorpAccessToken(ctx context.Context, corpID string) (token.AccessToken, error) {
	if tok, ok := c.corpTokens.Get(corpID); ok {
		return tok, nil
	}

	permanentCode, err := c.permCodes.PermanentCode(ctx, corpID)
	if err != nil {
		return token.AccessToken{}, err
	}

	suiteTok, err := c.EnsureSuiteAccessToken(ctx)
	if err != nil {
		return token.AccessToken{}, err
	}

	q := url.Values{}
	q.Set("suite_access_token", suiteTok.Credential())
	res, err := c.Request(ctx, c.apiURL("/cgi-bin/service/get_corp_token", q), &RequestOptions{
		Method: http.MethodPost,
		Body: map[string]string{
			"suite_id":       c.suiteID,
			"auth_corpid":    corpID,
			"permanent_code": permanentCode,
		},
		CredentialParam: "suite_access_token",
		Refresh:         c.refreshSuiteCredential,
	})
	if err != nil {
		return token.AccessToken{}, errors.Wrapf(err, "fetch corp token for %s", corpID)
	}

	var resp corpTokenResponse
	if err := res.Bind(&resp); err != nil {
		return token.AccessToken{}, errors.Wrap(err, "decode corp token response")
	}

	tok := token.New(resp.AccessToken, time.Duration(resp.ExpiresIn)*time.Second)
	c.corpTokens.Put(corpID, tok)

	c.log.Debug().Str("corp_id", corpID).Int64("expires_in", resp.ExpiresIn).Msg("corp token refreshed")
	return tok, nil
}

// refreshSuiteCredential erases the persisted suite token and mints a new
// one. Used as the executor's refresh hook for suite-scoped calls.
func (c *Client) refreshSuiteCredential(ctx context.Context) (token.AccessToken, error) {
	if err := c.store.Save(ctx, nil); err != nil {
		return token.AccessToken{}, errors.Wrap(err, "erase suite token")
	}
	return c.EnsureSuiteAccessToken(ctx)
}

// refreshCorpCredential drops the cached token for corpID and mints a new
// one. Used as the executor's refresh hook for corp-scoped calls.
func (c *Client) refreshCorpCredential(corpID string) RefreshFunc {
	return func(ctx context.Context) (token.AccessToken, error) {
		c.corpTokens.Drop(corpID)
		return c.EnsureCorpAccessToken(ctx, corpID)
	}
}

// AuthURL composes the third-party install URL a tenant administrator visits
// to authorize this suite. Pure string composition; no I/O and no token
// involvement.
func (c *Client) AuthURL(preAuthCode, redirectURI, state string) string {
	q := url.Values{}
	q.Set("suite_id", c.suiteID)
	q.Set("pre_auth_code", preAuthCode)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return c.installURL + "?" + q.Encode()
}

func (c *Client) apiURL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// CorpGet performs a GET against a corp-scoped endpoint, attaching the
// corp's access token and decoding the response into out.
func (c *Client) CorpGet(ctx context.Context, corpID, path string, query url.Values, out interface{}) error {
	tok, err := c.EnsureCorpAccessToken(ctx, corpID)
	if err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("access_token", tok.Credential())

	res, err := c.Request(ctx, c.apiURL(path, query), &RequestOptions{
		Refresh: c.refreshCorpCredential(corpID),
	})
	if err != nil {
		return err
	}
	return bindResult(res, out)
}

// CorpPostJSON performs a POST with a JSON body against a corp-scoped
// endpoint.
func (c *Client) CorpPostJSON(ctx context.Context, corpID, path string, body, out interface{}) error {
	tok, err := c.EnsureCorpAccessToken(ctx, corpID)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("access_token", tok.Credential())

	res, err := c.Request(ctx, c.apiURL(path, q), &RequestOptions{
		Method:  http.MethodPost,
		Body:    body,
		Refresh: c.refreshCorpCredential(corpID),
	})
	if err != nil {
		return err
	}
	return bindResult(res, out)
}

// SuiteGet performs a GET against a suite-scoped service endpoint.
func (c *Client) SuiteGet(ctx context.Context, path string, query url.Values, out interface{}) error {
	tok, err := c.EnsureSuiteAccessToken(ctx)
	if err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("suite_access_token", tok.Credential())

	res, err := c.Request(ctx, c.apiURL(path, query), &RequestOptions{
		CredentialParam: "suite_access_token",
		Refresh:         c.refreshSuiteCredential,
	})
	if err != nil {
		return err
	}
	return bindResult(res, out)
}

// SuitePostJSON performs a POST with a JSON body against a suite-scoped
// service endpoint.
func (c *Client) SuitePostJSON(ctx context.Context, path string, body, out interface{}) error {
	tok, err := c.EnsureSuiteAccessToken(ctx)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("suite_access_token", tok.Credential())

	res, err := c.Request(ctx, c.apiURL(path, q), &RequestOptions{
		Method:          http.MethodPost,
		Body:            body,
		CredentialParam: "suite_access_token",
		Refresh:         c.refreshSuiteCredential,
	})
	if err != nil {
		return err
	}
	return bindResult(res, out)
}

func bindResult(res *Result, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := res.Bind(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
