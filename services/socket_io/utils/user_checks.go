package socketio_utils

import (
	"log"
	"strings"

	"Tavern/middleware"
	models "Tavern/models/postgres"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/v2/socket"
	"gorm.io/gorm"
)

// VerifyConnection authenticates a socket.io handshake. Clients pass the
// bearer token from login in the auth payload under "authorization", with
// or without the "Bearer " prefix.
func VerifyConnection(client *socket.Socket, db *gorm.DB, jwtSecret string) (*models.Account, bool) {
	authData, ok := client.Handshake().Auth.(map[string]interface{})
	if !ok {
		client.Emit("error", gin.H{"error": "authentication failed: missing auth data"})
		return nil, false
	}

	token, ok := authData["authorization"].(string)
	if !ok {
		client.Emit("error", gin.H{"error": "authentication failed: missing authorization token"})
		return nil, false
	}
	token = strings.TrimPrefix(token, "Bearer ")

	accountUUID, err := middleware.DecodeToken(jwtSecret, token)
	if err != nil {
		client.Emit("error", gin.H{"error": "authentication failed: invalid token"})
		return nil, false
	}

	var account models.Account
	if err := db.First(&account, "uuid = ?", accountUUID).Error; err != nil {
		log.Printf("[SOCKET] fetching account %s: %v", accountUUID, err)
		client.Emit("error", gin.H{"error": "authentication failed: unknown account"})
		return nil, false
	}
	return &account, true
}
