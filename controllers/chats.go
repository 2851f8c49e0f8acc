package controllers

import (
	"log"
	"net/http"

	"Tavern/services/apierror"
	"Tavern/services/chat"
	"Tavern/services/lobby"
	"Tavern/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type sendMessageRequest struct {
	Message string `json:"message"`
}

// @Summary List the chat rooms of the executing account
// @Description Returns friend rooms, game rooms and, if the account is in a lobby, that lobby's room
// @Tags chats
// @Produce json
// @Success 200 {object} object{friend_chat_rooms=[]string,game_chat_rooms=[]string,lobby_chat_room=string}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/chats [get]
// @Security ApiKeyAuth
func ListChats(relay *chat.Relay, manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)

		friendRooms, err := relay.FriendRooms(account.UUID)
		if err != nil {
			log.Printf("[CHAT] listing friend rooms: %v", err)
			utils.Abort(c, apierror.Of(apierror.DatabaseError))
			return
		}
		gameRooms, err := relay.GameRooms(account.UUID)
		if err != nil {
			log.Printf("[CHAT] listing game rooms: %v", err)
			utils.Abort(c, apierror.Of(apierror.DatabaseError))
			return
		}

		resp := gin.H{
			"friend_chat_rooms": friendRooms,
			"game_chat_rooms":   gameRooms,
		}
		if roomUUID, ok := manager.ChatRoomOf(account.UUID); ok {
			resp["lobby_chat_room"] = roomUUID
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary Get a chat room
// @Description Returns the members and the message history in send order. Pass since to resume after a known message
// @Tags chats
// @Produce json
// @Param uuid path string true "Chat room uuid"
// @Param since query string false "Message uuid to resume after"
// @Success 200 {object} object{members=[]chat.MemberInfo,messages=[]chat.MessageInfo}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/chats/{uuid} [get]
// @Security ApiKeyAuth
func GetChat(relay *chat.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		account := utils.CurrentAccount(c)

		var since *uuid.UUID
		if raw := c.Query("since"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				utils.Abort(c, apierror.Of(apierror.InvalidUuid))
				return
			}
			since = &id
		}

		members, messages, apiErr := relay.History(roomUUID, account.UUID, since)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"members": members, "messages": messages})
	}
}

// @Summary Send a chat message
// @Description Appends the message to the room history and fans it out to all subscribed members
// @Tags chats
// @Accept json
// @Produce json
// @Param uuid path string true "Chat room uuid"
// @Param request body object{message=string} true "Message body"
// @Success 200 {object} chat.MessageInfo
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/chats/{uuid} [post]
// @Security ApiKeyAuth
func SendChatMessage(relay *chat.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		account := utils.CurrentAccount(c)

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidJson))
			return
		}

		info, apiErr := relay.Send(roomUUID, account, req.Message)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}
