package controllers

import (
	"net/http"

	"Tavern/services/apierror"
	"Tavern/services/lobby"
	"Tavern/utils"

	"github.com/gin-gonic/gin"
)

func callerIdentity(c *gin.Context) lobby.Identity {
	account := utils.CurrentAccount(c)
	return lobby.Identity{
		UUID:        account.UUID,
		Username:    account.Username,
		DisplayName: account.DisplayName,
	}
}

// @Summary List open lobbies
// @Description Returns a snapshot of every lobby that has not started yet
// @Tags lobbies
// @Produce json
// @Success 200 {object} object{lobbies=[]lobby.Info}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/lobbies [get]
// @Security ApiKeyAuth
func ListLobbies(manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"lobbies": manager.List()})
	}
}

// @Summary Get a single lobby
// @Tags lobbies
// @Produce json
// @Param uuid path string true "Lobby uuid"
// @Success 200 {object} lobby.Info
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/lobbies/{uuid} [get]
// @Security ApiKeyAuth
func GetLobby(manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		lobbyUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		info, apiErr := manager.Get(lobbyUUID)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

type createLobbyRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
	Password   string `json:"password"`
}

// @Summary Create a lobby
// @Description Creates a lobby owned by the executing account, which becomes its first member. An empty password leaves the lobby open
// @Tags lobbies
// @Accept json
// @Produce json
// @Param request body object{name=string,max_players=int,password=string} true "Lobby settings"
// @Success 200 {object} lobby.Info
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/lobbies [post]
// @Security ApiKeyAuth
func CreateLobby(manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createLobbyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidJson))
			return
		}

		info, apiErr := manager.Create(callerIdentity(c), req.Name, req.MaxPlayers, req.Password)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

type joinLobbyRequest struct {
	Password string `json:"password"`
}

// @Summary Join a lobby
// @Description Adds the executing account to the lobby. A password is required when the lobby is protected
// @Tags lobbies
// @Accept json
// @Produce json
// @Param uuid path string true "Lobby uuid"
// @Param request body object{password=string} false "Lobby password"
// @Success 200 {object} lobby.Info
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/lobbies/{uuid}/join [post]
// @Security ApiKeyAuth
func JoinLobby(manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		lobbyUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}

		var req joinLobbyRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.Abort(c, apierror.Of(apierror.InvalidJson))
				return
			}
		}

		info, apiErr := manager.Join(lobbyUUID, callerIdentity(c), req.Password, false)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// @Summary Leave a lobby
// @Description Removes the executing account from the lobby. Leaving as owner hands the lobby to the longest-standing member; the last member leaving destroys it
// @Tags lobbies
// @Produce json
// @Param uuid path string true "Lobby uuid"
// @Success 200 {object} object{}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/lobbies/{uuid}/leave [post]
// @Security ApiKeyAuth
func LeaveLobby(manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		lobbyUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		account := utils.CurrentAccount(c)
		if apiErr := manager.Leave(lobbyUUID, account.UUID); apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	}
}

// @Summary Kick a player from a lobby
// @Description Owner only. The kicked player is notified and unsubscribed from the lobby
// @Tags lobbies
// @Produce json
// @Param uuid path string true "Lobby uuid"
// @Param player path string true "Player uuid"
// @Success 200 {object} object{}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/lobbies/{uuid}/kick/{player} [post]
// @Security ApiKeyAuth
func KickFromLobby(manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		lobbyUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		target, ok := utils.ParseUUIDParam(c, "player")
		if !ok {
			return
		}
		account := utils.CurrentAccount(c)
		if apiErr := manager.Kick(lobbyUUID, account.UUID, target); apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	}
}

// @Summary Start the game
// @Description Owner only. Converts the lobby into a game, keeping its chat room, and dissolves the lobby
// @Tags lobbies
// @Produce json
// @Param uuid path string true "Lobby uuid"
// @Success 200 {object} object{game_uuid=string}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/lobbies/{uuid}/start [post]
// @Security ApiKeyAuth
func StartLobby(manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		lobbyUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		account := utils.CurrentAccount(c)
		gameUUID, apiErr := manager.Start(lobbyUUID, account.UUID)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"game_uuid": gameUUID})
	}
}

// @Summary Close a lobby
// @Description Owner only. Notifies all members and destroys the lobby
// @Tags lobbies
// @Produce json
// @Param uuid path string true "Lobby uuid"
// @Success 200 {object} object{}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/lobbies/{uuid} [delete]
// @Security ApiKeyAuth
func CloseLobby(manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		lobbyUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		account := utils.CurrentAccount(c)
		if apiErr := manager.Close(lobbyUUID, account.UUID); apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	}
}
