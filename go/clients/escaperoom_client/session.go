package escaperoom_client

import (
	"context"

	"github.com/mcdev12/escaperoom/go/internal/api/escaperoomv1"
)

func (c *Client) Login(ctx context.Context, password string) (*escaperoomv1.LoginResponse, error) {
	return call(ctx, c.login, &escaperoomv1.LoginRequest{Password: password})
}

func (c *Client) Heartbeat(ctx context.Context, sessionToken string, isGameActive bool) (*escaperoomv1.TimeResponse, error) {
	return call(ctx, c.heartbeat, &escaperoomv1.HeartbeatRequest{SessionToken: sessionToken, IsGameActive: isGameActive})
}

func (c *Client) GetRemaining(ctx context.Context, sessionToken string) (*escaperoomv1.TimeResponse, error) {
	return call(ctx, c.getRemaining, &escaperoomv1.SessionRequest{SessionToken: sessionToken})
}

func (c *Client) StartGame(ctx context.Context, sessionToken string, minutes int) (*escaperoomv1.GameResponse, error) {
	return call(ctx, c.startGame, &escaperoomv1.StartGameRequest{SessionToken: sessionToken, GameDurationMinutes: minutes})
}

func (c *Client) StopGame(ctx context.Context, sessionToken string) error {
	_, err := call(ctx, c.stopGame, &escaperoomv1.SessionRequest{SessionToken: sessionToken})
	return err
}

func (c *Client) PauseGame(ctx context.Context, sessionToken string) (*escaperoomv1.GameResponse, error) {
	return call(ctx, c.pauseGame, &escaperoomv1.SessionRequest{SessionToken: sessionToken})
}

func (c *Client) ResumeGame(ctx context.Context, sessionToken string) (*escaperoomv1.GameResponse, error) {
	return call(ctx, c.resumeGame, &escaperoomv1.SessionRequest{SessionToken: sessionToken})
}

func (c *Client) ResetGame(ctx context.Context, sessionToken string) error {
	_, err := call(ctx, c.resetGame, &escaperoomv1.SessionRequest{SessionToken: sessionToken})
	return err
}

func (c *Client) Logout(ctx context.Context, sessionToken string) error {
	_, err := call(ctx, c.logout, &escaperoomv1.SessionRequest{SessionToken: sessionToken})
	return err
}
