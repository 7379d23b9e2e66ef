package escaperoom_client

import (
	"context"

	"github.com/mcdev12/escaperoom/go/internal/api/escaperoomv1"
)

// GetRooms lists rooms of the given session, or of the current one when
// sessionToken is empty.
func (c *Client) GetRooms(ctx context.Context, sessionToken string) ([]escaperoomv1.Room, error) {
	res, err := call(ctx, c.getRooms, &escaperoomv1.GetRoomsRequest{SessionToken: sessionToken})
	if err != nil {
		return nil, err
	}
	return res.Rooms, nil
}

func (c *Client) CreateRoom(ctx context.Context, sessionToken, name string, maxPlayers int) (*escaperoomv1.Room, error) {
	res, err := call(ctx, c.createRoom, &escaperoomv1.CreateRoomRequest{
		SessionToken: sessionToken,
		RoomName:     name,
		MaxPlayers:   maxPlayers,
	})
	if err != nil {
		return nil, err
	}
	return &res.Room, nil
}

func (c *Client) DeleteRoom(ctx context.Context, sessionToken, roomID string) error {
	_, err := call(ctx, c.deleteRoom, &escaperoomv1.RoomRequest{SessionToken: sessionToken, RoomID: roomID})
	return err
}

// AssignRoom moves a player into roomID; nil unassigns.
func (c *Client) AssignRoom(ctx context.Context, sessionToken, playerID string, roomID *string) error {
	_, err := call(ctx, c.assignRoom, &escaperoomv1.AssignRoomRequest{
		SessionToken: sessionToken,
		PlayerID:     playerID,
		RoomID:       roomID,
	})
	return err
}

func (c *Client) UnblockRoom(ctx context.Context, sessionToken, roomID string) error {
	_, err := call(ctx, c.unblockRoom, &escaperoomv1.RoomRequest{SessionToken: sessionToken, RoomID: roomID})
	return err
}
