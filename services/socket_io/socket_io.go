package socket_io

import (
	"log"
	"time"

	"Tavern/services/chat"
	"Tavern/services/hub"
	"Tavern/services/lobby"
	"Tavern/services/sessions"
	"Tavern/services/socket_io/handlers"
	socketio_types "Tavern/services/socket_io/types"
	socketio_utils "Tavern/services/socket_io/utils"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
	"gorm.io/gorm"
)

type MySocketServer socketio_types.SocketServer

// Start mounts the socket.io endpoint on the router. Each authenticated
// connection is bound into the session registry and resubscribed to the
// rooms its account belongs to, so reconnecting clients keep receiving
// events without any explicit rejoin.
func (sio *MySocketServer) Start(router *gin.Engine, db *gorm.DB, jwtSecret string,
	registry *sessions.Registry, h *hub.Hub, manager *lobby.Manager, relay *chat.Relay) {

	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	// Higher ping interval and timeout to reduce network load and support
	// slower networks.
	c.SetPingInterval(5 * time.Second)
	c.SetPingTimeout(3 * time.Second)
	c.SetMaxHttpBufferSize(1000000)
	c.SetConnectTimeout(10 * time.Second)
	c.SetTransports(types.NewSet("polling", "websocket"))
	c.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	sio.Sio_server = socket.NewServer(nil, nil)
	sio.Sio_server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		account, ok := socketio_utils.VerifyConnection(client, db, jwtSecret)
		if !ok {
			return
		}

		conn := &socketio_types.SocketConn{Socket: client}
		registry.Bind(account.UUID, conn)
		log.Printf("[SOCKET] %s connected (conn %s)", account.Username, conn.ID())

		// Resubscribe to the lobby room, if any, and to every chat room
		// the account is a member of.
		if lobbyUUID, inLobby := manager.LobbyOf(account.UUID); inLobby {
			h.Subscribe(lobbyUUID.String(), conn)
		}
		rooms, err := relay.MemberRooms(account.UUID)
		if err != nil {
			log.Printf("[SOCKET] listing rooms for %s: %v", account.Username, err)
		}
		for _, roomUUID := range rooms {
			h.Subscribe(roomUUID.String(), conn)
		}

		client.On("send_message", handlers.HandleSendMessage(relay, client, account))

		client.On("disconnecting", handlers.HandleDisconnecting(registry, h, conn, account.UUID))
	})

	router.POST("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))
	router.GET("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))

	log.Println("[SOCKET] server started")
}

// Close shuts the socket.io server down.
func (sio *MySocketServer) Close() {
	if sio.Sio_server != nil {
		sio.Sio_server.Close(nil)
	}
}
