package controllers

import (
	"net/http"

	"Tavern/services/apierror"
	"Tavern/services/gamestate"
	"Tavern/utils"

	"github.com/gin-gonic/gin"
)

type pushGameRequest struct {
	GameData []byte `json:"game_data"`
}

// @Summary List the games of the executing account
// @Description Returns an overview of every game the account is a member of, without the state blobs
// @Tags games
// @Produce json
// @Success 200 {object} object{games=[]gamestate.Overview}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/games [get]
// @Security ApiKeyAuth
func ListGames(store *gamestate.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)
		overviews, apiErr := store.Overviews(account.UUID)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"games": overviews})
	}
}

// @Summary Get the full state of a game
// @Description Members only. Returns the overview plus the current state blob
// @Tags games
// @Produce json
// @Param uuid path string true "Game uuid"
// @Success 200 {object} gamestate.FullState
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/games/{uuid} [get]
// @Security ApiKeyAuth
func GetGame(store *gamestate.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		account := utils.CurrentAccount(c)
		state, apiErr := store.Get(gameUUID, account.UUID)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// @Summary Push a new game state
// @Description Members only. Replaces the state blob and bumps the version counter by one
// @Tags games
// @Accept json
// @Produce json
// @Param uuid path string true "Game uuid"
// @Param request body object{game_data=string} true "Base64 encoded state blob"
// @Success 200 {object} object{game_data_id=int}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/games/{uuid} [put]
// @Security ApiKeyAuth
func PushGame(store *gamestate.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameUUID, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		account := utils.CurrentAccount(c)

		var req pushGameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidJson))
			return
		}

		dataID, apiErr := store.Push(gameUUID, account.UUID, req.GameData)
		if apiErr != nil {
			utils.Abort(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"game_data_id": dataID})
	}
}
