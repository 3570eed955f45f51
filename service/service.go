// Package service wraps the suite-scoped service endpoints used during
// tenant authorization: minting pre-auth codes and exchanging a temporary
// authorization code for a corp's permanent code.
package service

import (
	"context"

	"github.com/jrsteele09/go-wecom-suite/wecom"
)

// PreAuthCode is a short-lived code embedded in the install URL handed to a
// tenant administrator.
type PreAuthCode struct {
	Code      string `json:"pre_auth_code"`
	ExpiresIn int64  `json:"expires_in"`
}

// CorpInfo identifies the corp that completed an authorization.
type CorpInfo struct {
	CorpID   string `json:"corpid"`
	CorpName string `json:"corp_name"`
}

// AuthInfo is the outcome of the authorization-code exchange. The permanent
// code must be persisted by the host; it is required for every future corp
// token mint and is not retrievable again.
type AuthInfo struct {
	PermanentCode string   `json:"permanent_code"`
	AuthCorpInfo  CorpInfo `json:"auth_corp_info"`
}

// GetPreAuthCode mints a pre-auth code for a new installation flow.
func GetPreAuthCode(ctx context.Context, c *wecom.Client) (*PreAuthCode, error) {
	var resp PreAuthCode
	if err := c.SuiteGet(ctx, "/cgi-bin/service/get_pre_auth_code", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPermanentCode exchanges the temporary authorization code delivered to
// the redirect URI for the corp's permanent code.
func GetPermanentCode(ctx context.Context, c *wecom.Client, authCode string) (*AuthInfo, error) {
	var resp AuthInfo
	body := map[string]string{"auth_code": authCode}
	if err := c.SuitePostJSON(ctx, "/cgi-bin/service/get_permanent_code", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
