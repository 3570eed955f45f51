// Package message sends application messages to corp members.
package message

import (
	"context"

	"github.com/jrsteele09/go-wecom-suite/internal/jsoncodec"
	"github.com/jrsteele09/go-wecom-suite/wecom"
)

// Text is the payload of a plain text message.
type Text struct {
	Content string `json:"content"`
}

// Markdown is the payload of a markdown message.
type Markdown struct {
	Content string `json:"content"`
}

// Message targets corp members by user, party or tag id list (pipe
// separated). Exactly one payload field matching MsgType must be set.
type Message struct {
	ToUser  string `json:"touser,omitempty"`
	ToParty string `json:"toparty,omitempty"`
	ToTag   string `json:"totag,omitempty"`
	MsgType string `json:"msgtype"`
	AgentID int64  `json:"agentid"`

	Text     *Text     `json:"text,omitempty"`
	Markdown *Markdown `json:"markdown,omitempty"`
}

// SendResult reports which targets the remote service rejected. The remote
// delivers to the rest even when some targets are invalid.
type SendResult struct {
	InvalidUser  string `json:"invaliduser"`
	InvalidParty string `json:"invalidparty"`
	InvalidTag   string `json:"invalidtag"`
	MsgID        string `json:"msgid"`
}

// Send delivers msg on behalf of a corp's agent.
func Send(ctx context.Context, c *wecom.Client, corpID string, msg *Message) (*SendResult, error) {
	var resp SendResult
	if err := c.CorpPostJSON(ctx, corpID, "/cgi-bin/message/send", msg, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register adds the message operations to a registry.
func Register(r *wecom.Registry, c *wecom.Client) error {
	return r.Register("message.send", func(ctx context.Context, corpID string, params []byte) (interface{}, error) {
		var msg Message
		if err := jsoncodec.Unmarshal(params, &msg); err != nil {
			return nil, err
		}
		return Send(ctx, c, corpID, &msg)
	})
}
