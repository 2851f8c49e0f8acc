package handlers

import (
	"log"

	models "Tavern/models/postgres"
	"Tavern/services/chat"
	"Tavern/services/hub"
	"Tavern/services/sessions"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zishang520/socket.io/v2/socket"
)

// HandleSendMessage relays a chat message sent over the socket. The
// payload mirrors the REST endpoint: {"chat_room_uuid": ..., "message": ...}.
func HandleSendMessage(relay *chat.Relay, client *socket.Socket, account *models.Account) func(args ...interface{}) {
	return func(args ...interface{}) {
		if len(args) < 1 {
			client.Emit("error", gin.H{"error": "missing payload"})
			return
		}
		payload, ok := args[0].(map[string]interface{})
		if !ok {
			client.Emit("error", gin.H{"error": "malformed payload"})
			return
		}

		rawRoom, _ := payload["chat_room_uuid"].(string)
		roomUUID, err := uuid.Parse(rawRoom)
		if err != nil {
			client.Emit("error", gin.H{"error": "invalid chat_room_uuid"})
			return
		}
		body, _ := payload["message"].(string)

		if _, apiErr := relay.Send(roomUUID, account, body); apiErr != nil {
			client.Emit("error", gin.H{
				"status_code": apiErr.Code,
				"message":     apiErr.Message,
			})
		}
	}
}

// HandleDisconnecting unbinds the socket from the session registry and
// drops its room subscriptions. The registry starts the grace timer when
// this was the account's last connection.
func HandleDisconnecting(registry *sessions.Registry, h *hub.Hub, conn hub.Conn, account uuid.UUID) func(args ...interface{}) {
	return func(args ...interface{}) {
		log.Printf("[SOCKET] %s disconnecting (conn %s)", account, conn.ID())
		h.UnsubscribeAll(conn)
		registry.Unbind(account, conn)
	}
}
