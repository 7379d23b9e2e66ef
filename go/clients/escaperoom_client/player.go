package escaperoom_client

import (
	"context"

	"github.com/mcdev12/escaperoom/go/internal/api/escaperoomv1"
)

func (c *Client) CheckSession(ctx context.Context) (bool, error) {
	res, err := call(ctx, c.checkSession, &escaperoomv1.CheckSessionRequest{})
	if err != nil {
		return false, err
	}
	return res.SessionActive, nil
}

func (c *Client) Join(ctx context.Context, nickname string) (*escaperoomv1.JoinResponse, error) {
	return call(ctx, c.join, &escaperoomv1.JoinRequest{Nickname: nickname})
}

func (c *Client) PlayerHeartbeat(ctx context.Context, playerToken string) (*escaperoomv1.PlayerHeartbeatResponse, error) {
	return call(ctx, c.playerHeartbeat, &escaperoomv1.PlayerRequest{PlayerToken: playerToken})
}

func (c *Client) Leave(ctx context.Context, playerToken string) error {
	_, err := call(ctx, c.leave, &escaperoomv1.PlayerRequest{PlayerToken: playerToken})
	return err
}

func (c *Client) UpdateProgress(ctx context.Context, playerToken, phase string, enigma int) error {
	_, err := call(ctx, c.updateProgress, &escaperoomv1.UpdateProgressRequest{
		PlayerToken:   playerToken,
		CurrentPhase:  phase,
		CurrentEnigma: enigma,
	})
	return err
}

// GetPlayers lists the leaderboard of the current session, optionally for one room.
func (c *Client) GetPlayers(ctx context.Context, roomID string) ([]escaperoomv1.Player, error) {
	res, err := call(ctx, c.getPlayers, &escaperoomv1.GetPlayersRequest{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return res.Players, nil
}

func (c *Client) MarkEnigmaSolved(ctx context.Context, playerToken string, enigma int) error {
	_, err := call(ctx, c.markEnigmaSolved, &escaperoomv1.MarkEnigmaSolvedRequest{PlayerToken: playerToken, EnigmaNumber: enigma})
	return err
}

func (c *Client) MarkFinalSolved(ctx context.Context, playerToken string) error {
	_, err := call(ctx, c.markFinalSolved, &escaperoomv1.PlayerRequest{PlayerToken: playerToken})
	return err
}

func (c *Client) BlockRoom(ctx context.Context, playerToken string) (int, error) {
	res, err := call(ctx, c.blockRoom, &escaperoomv1.PlayerRequest{PlayerToken: playerToken})
	if err != nil {
		return 0, err
	}
	return res.BlockedSeconds, nil
}

func (c *Client) GetRoomStatus(ctx context.Context, playerToken string) (*escaperoomv1.RoomStatusResponse, error) {
	return call(ctx, c.getRoomStatus, &escaperoomv1.PlayerRequest{PlayerToken: playerToken})
}
