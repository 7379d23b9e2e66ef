package escaperoom_client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

// PushURL turns the API base URL into the websocket push URL for token.
func (c *Client) PushURL(token string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/session"
	u.RawQuery = url.Values{"token": []string{token}}.Encode()
	return u.String(), nil
}

// SubscribePush calls fn for every push hint until ctx is done or the
// connection drops. Hints carry no state; callers should react by
// heartbeating, e.g. with reconcile.Runner.Nudge.
func (c *Client) SubscribePush(ctx context.Context, token string, fn func(events.Envelope)) error {
	target, err := c.PushURL(token)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return models.ErrAuth
		}
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return models.ErrSessionInactive
		}
		return fmt.Errorf("dial push channel: %w: %v", models.ErrNetwork, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var envelope events.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read push channel: %w: %v", models.ErrNetwork, err)
		}
		log.Debug().Str("event_type", envelope.EventType).Msg("push hint received")
		fn(envelope)
	}
}
