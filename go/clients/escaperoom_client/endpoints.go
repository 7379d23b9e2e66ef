package escaperoom_client

import (
	"context"
	"sync"

	"github.com/mcdev12/escaperoom/go/internal/reconcile"
)

// PlayerEndpoint adapts the player procedures to reconcile.Endpoint.
type PlayerEndpoint struct {
	client *Client
}

func NewPlayerEndpoint(c *Client) *PlayerEndpoint {
	return &PlayerEndpoint{client: c}
}

func (e *PlayerEndpoint) CheckSession(ctx context.Context) (bool, error) {
	return e.client.CheckSession(ctx)
}

func (e *PlayerEndpoint) Join(ctx context.Context, nickname string) (string, bool, error) {
	res, err := e.client.Join(ctx, nickname)
	if err != nil {
		return "", false, err
	}
	return res.PlayerToken, res.GameActive, nil
}

func (e *PlayerEndpoint) Heartbeat(ctx context.Context, token string) (reconcile.Observation, error) {
	res, err := e.client.PlayerHeartbeat(ctx, token)
	if err != nil {
		return reconcile.Observation{}, err
	}
	return reconcile.Observation{
		GameActive:           res.GameActive,
		GamePaused:           res.GamePaused,
		GameRemainingSeconds: res.GameRemainingSeconds,
		Expired:              res.Expired,
	}, nil
}

// MasterEndpoint adapts the session procedures to reconcile.Endpoint. Its
// Join logs in, so the argument is the master password. Pair it with
// reconcile.MasterRunnerConfig.
type MasterEndpoint struct {
	client *Client

	mu         sync.Mutex
	gameActive bool
}

func NewMasterEndpoint(c *Client) *MasterEndpoint {
	return &MasterEndpoint{client: c}
}

func (e *MasterEndpoint) CheckSession(ctx context.Context) (bool, error) {
	return e.client.CheckSession(ctx)
}

func (e *MasterEndpoint) Join(ctx context.Context, password string) (string, bool, error) {
	res, err := e.client.Login(ctx, password)
	if err != nil {
		return "", false, err
	}
	return res.SessionToken, false, nil
}

func (e *MasterEndpoint) Heartbeat(ctx context.Context, token string) (reconcile.Observation, error) {
	e.mu.Lock()
	active := e.gameActive
	e.mu.Unlock()

	res, err := e.client.Heartbeat(ctx, token, active)
	if err != nil {
		return reconcile.Observation{}, err
	}

	e.mu.Lock()
	e.gameActive = res.GameActive
	e.mu.Unlock()

	return reconcile.Observation{
		RemainingSeconds:     res.RemainingSeconds,
		GameActive:           res.GameActive,
		GamePaused:           res.GamePaused,
		GameRemainingSeconds: res.GameRemainingSeconds,
		Expired:              res.Expired,
	}, nil
}
