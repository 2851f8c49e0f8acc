package controllers

import (
	"net/http"

	"Tavern/services/apierror"
	"Tavern/services/lobby"
	"Tavern/services/social"
	"Tavern/utils"

	"github.com/gin-gonic/gin"
)

type createInviteRequest struct {
	FriendUUID string `json:"friend_uuid"`
	LobbyUUID  string `json:"lobby_uuid"`
}

// @Summary List open lobby invites
// @Description Returns the invites addressed to the executing account
// @Tags invites
// @Produce json
// @Success 200 {object} object{invites=[]social.InviteInfo}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/invites [get]
// @Security ApiKeyAuth
func ListInvites(graph *social.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)
		invites, apiErr := graph.ListInvites(account.UUID)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invites": invites})
	}
}

// @Summary Invite a friend into the caller's lobby
// @Description The caller must be a member of the lobby and an accepted friend of the invitee. Notifies the invitee if online
// @Tags invites
// @Accept json
// @Produce json
// @Param request body object{friend_uuid=string,lobby_uuid=string} true "Invitee and lobby"
// @Success 200 {object} social.InviteInfo
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/invites [post]
// @Security ApiKeyAuth
func CreateInvite(graph *social.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)

		var req createInviteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidJson))
			return
		}
		friendUUID, ok := utils.ParseUUIDBody(c, req.FriendUUID)
		if !ok {
			return
		}
		lobbyUUID, ok := utils.ParseUUIDBody(c, req.LobbyUUID)
		if !ok {
			return
		}

		info, apiErr := graph.CreateInvite(account, friendUUID, lobbyUUID)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// @Summary Accept a lobby invite
// @Description Joins the invited lobby without a password and consumes the invite
// @Tags invites
// @Produce json
// @Param uuid path string true "Invite uuid"
// @Success 200 {object} lobby.Info
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/invites/{uuid} [post]
// @Security ApiKeyAuth
func AcceptInvite(graph *social.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)
		inviteUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		caller := lobby.Identity{
			UUID:        account.UUID,
			Username:    account.Username,
			DisplayName: account.DisplayName,
		}
		info, apiErr := graph.AcceptInvite(caller, inviteUUID)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// @Summary Decline a lobby invite
// @Tags invites
// @Produce json
// @Param uuid path string true "Invite uuid"
// @Success 200 {object} object{}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/invites/{uuid} [delete]
// @Security ApiKeyAuth
func DeleteInvite(graph *social.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)
		inviteUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		if apiErr := graph.DeleteInvite(account.UUID, inviteUUID); apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	}
}
