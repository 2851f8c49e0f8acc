package controllers

import (
	"net/http"

	"Tavern/services/apierror"
	"Tavern/services/social"
	"Tavern/utils"

	"github.com/gin-gonic/gin"
)

type friendRequestBody struct {
	UUID string `json:"uuid"`
}

// @Summary List friends and friend requests
// @Description Returns the accepted friendships of the executing account plus all requests it is part of
// @Tags friends
// @Produce json
// @Success 200 {object} object{friends=[]social.FriendInfo,friend_requests=[]social.RequestInfo}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/friends [get]
// @Security ApiKeyAuth
func ListFriends(graph *social.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)
		friends, requests, apiErr := graph.List(account.UUID)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"friends": friends, "friend_requests": requests})
	}
}

// @Summary Send a friend request
// @Description Creates a friend request towards another account and notifies it if online
// @Tags friends
// @Accept json
// @Produce json
// @Param request body object{uuid=string} true "Target account uuid"
// @Success 200 {object} social.RequestInfo
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/friends/request [post]
// @Security ApiKeyAuth
func CreateFriendRequest(graph *social.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)

		var req friendRequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidJson))
			return
		}
		target, ok := utils.ParseUUIDBody(c, req.UUID)
		if !ok {
			return
		}

		info, apiErr := graph.Request(account, target)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// @Summary Accept a friend request
// @Description Only the recipient may accept. Accepting creates the private chat room of the pair
// @Tags friends
// @Produce json
// @Param uuid path string true "Friend request uuid"
// @Success 200 {object} social.FriendInfo
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/friends/request/{uuid} [put]
// @Security ApiKeyAuth
func AcceptFriendRequest(graph *social.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)
		requestUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		info, apiErr := graph.Accept(account.UUID, requestUUID)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// @Summary Delete a friendship or reject a request
// @Description Either party may delete. Removes the pair's chat room as well
// @Tags friends
// @Produce json
// @Param uuid path string true "Friendship uuid"
// @Success 200 {object} object{}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/friends/{uuid} [delete]
// @Security ApiKeyAuth
func DeleteFriend(graph *social.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)
		friendUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		if apiErr := graph.Delete(account.UUID, friendUUID); apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	}
}
