package websocket

import (
	"github.com/aukilabs/voxelstore/messages"
	"golang.org/x/net/websocket"
)

// Receive reads a message from the given connection. Messages are JSON
// documents sent in text or binary frames.
func Receive(conn *websocket.Conn) (messages.Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return messages.Msg{}, 0, err
	}

	msg, err := messages.Decode(data)
	return msg, len(data), err
}

// Send writes a message to the given connection in a text frame.
func Send(conn *websocket.Conn, msg messages.Msg) (int, error) {
	if err := websocket.Message.Send(conn, string(msg.Data)); err != nil {
		return 0, err
	}
	return len(msg.Data), nil
}
