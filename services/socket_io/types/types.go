package socketio_types

import (
	"github.com/zishang520/socket.io/v2/socket"
)

// SocketServer wraps the socket.io server.
type SocketServer struct {
	Sio_server *socket.Server
}

func NewSocketServer() *SocketServer {
	return &SocketServer{}
}

// SocketConn adapts a socket.io socket to the fan-out hub's connection
// interface.
type SocketConn struct {
	Socket *socket.Socket
}

func (c *SocketConn) ID() string {
	return string(c.Socket.Id())
}

func (c *SocketConn) Emit(event string, payload any) {
	if err := c.Socket.Emit(event, payload); err != nil {
		// Delivery to a closing socket is best effort.
		_ = err
	}
}
