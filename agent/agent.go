// Package agent reads and updates a suite application's per-corp agent
// configuration.
package agent

import (
	"context"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-wecom-suite/internal/jsoncodec"
	"github.com/jrsteele09/go-wecom-suite/wecom"
)

// Info is the remote view of an installed agent.
type Info struct {
	AgentID        int64  `json:"agentid"`
	Name           string `json:"name"`
	SquareLogoURL  string `json:"square_logo_url"`
	Description    string `json:"description"`
	RedirectDomain string `json:"redirect_domain"`
	IsReportEnter  int    `json:"isreportenter"`
	HomeURL        string `json:"home_url"`
}

// Settings is the writable subset of an agent's configuration. Zero-valued
// fields are omitted and left unchanged remotely.
type Settings struct {
	AgentID        int64  `json:"agentid"`
	Name           string `json:"name,omitempty"`
	Description    string `json:"description,omitempty"`
	RedirectDomain string `json:"redirect_domain,omitempty"`
	LogoMediaID    string `json:"logo_mediaid,omitempty"`
	HomeURL        string `json:"home_url,omitempty"`
}

// Get fetches the agent configuration for one corp.
func Get(ctx context.Context, c *wecom.Client, corpID string, agentID int64) (*Info, error) {
	q := url.Values{}
	q.Set("agentid", strconv.FormatInt(agentID, 10))

	var resp Info
	if err := c.CorpGet(ctx, corpID, "/cgi-bin/agent/get", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Set updates the agent configuration for one corp.
func Set(ctx context.Context, c *wecom.Client, corpID string, settings *Settings) error {
	return c.CorpPostJSON(ctx, corpID, "/cgi-bin/agent/set", settings, nil)
}

// Register adds the agent operations to a registry.
func Register(r *wecom.Registry, c *wecom.Client) error {
	if err := r.Register("agent.get", func(ctx context.Context, corpID string, params []byte) (interface{}, error) {
		var p struct {
			AgentID int64 `json:"agentid"`
		}
		if err := jsoncodec.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return Get(ctx, c, corpID, p.AgentID)
	}); err != nil {
		return err
	}

	return r.Register("agent.set", func(ctx context.Context, corpID string, params []byte) (interface{}, error) {
		var settings Settings
		if err := jsoncodec.Unmarshal(params, &settings); err != nil {
			return nil, err
		}
		if err := Set(ctx, c, corpID, &settings); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}
