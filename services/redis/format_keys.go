package redis

import (
	"fmt"

	"github.com/google/uuid"
)

func gameDataKey(gameUUID uuid.UUID) string {
	return fmt.Sprintf("game:%s:data", gameUUID)
}

func gameDataIDKey(gameUUID uuid.UUID) string {
	return fmt.Sprintf("game:%s:data_id", gameUUID)
}

func lastMessageKey(roomUUID uuid.UUID) string {
	return fmt.Sprintf("chat:%s:last_message", roomUUID)
}
