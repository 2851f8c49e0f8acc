package routes

import (
	"Tavern/controllers"
	"Tavern/middleware"
	"Tavern/services/chat"
	"Tavern/services/gamestate"
	"Tavern/services/lobby"
	"Tavern/services/social"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, jwtSecret string,
	manager *lobby.Manager, relay *chat.Relay, store *gamestate.Store, graph *social.Graph) {

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/ping", controllers.Ping)

	api := router.Group("/api/v2")

	api.POST("/auth/login", controllers.Login(db, jwtSecret))

	api.POST("/accounts/register", controllers.Register(db))

	authenticated := api.Group("/")
	authenticated.Use(middleware.AuthRequired(db, jwtSecret))
	{
		authenticated.DELETE("/auth/logout", controllers.Logout)

		accounts := authenticated.Group("/accounts")
		{
			accounts.GET("/me", controllers.GetMe())
			accounts.PUT("/me", controllers.UpdateMe(db))
			accounts.DELETE("/me", controllers.DeleteMe(db))
			accounts.POST("/setPassword", controllers.SetPassword(db))
			accounts.GET("/lookup/:username", controllers.LookupByUsername(db))
			accounts.GET("/:uuid", controllers.LookupByUUID(db))
		}

		friends := authenticated.Group("/friends")
		{
			friends.GET("", controllers.ListFriends(graph))
			friends.POST("/request", controllers.CreateFriendRequest(graph))
			friends.PUT("/request/:uuid", controllers.AcceptFriendRequest(graph))
			friends.DELETE("/:uuid", controllers.DeleteFriend(graph))
		}

		invites := authenticated.Group("/invites")
		{
			invites.GET("", controllers.ListInvites(graph))
			invites.POST("", controllers.CreateInvite(graph))
			invites.POST("/:uuid", controllers.AcceptInvite(graph))
			invites.DELETE("/:uuid", controllers.DeleteInvite(graph))
		}

		lobbies := authenticated.Group("/lobbies")
		{
			lobbies.GET("", controllers.ListLobbies(manager))
			lobbies.POST("", controllers.CreateLobby(manager))
			lobbies.GET("/:uuid", controllers.GetLobby(manager))
			lobbies.DELETE("/:uuid", controllers.CloseLobby(manager))
			lobbies.POST("/:uuid/join", controllers.JoinLobby(manager))
			lobbies.POST("/:uuid/leave", controllers.LeaveLobby(manager))
			lobbies.POST("/:uuid/kick/:player", controllers.KickFromLobby(manager))
			lobbies.POST("/:uuid/start", controllers.StartLobby(manager))
		}

		chats := authenticated.Group("/chats")
		{
			chats.GET("", controllers.ListChats(relay, manager))
			chats.GET("/:uuid", controllers.GetChat(relay))
			chats.POST("/:uuid", controllers.SendChatMessage(relay))
		}

		games := authenticated.Group("/games")
		{
			games.GET("", controllers.ListGames(store))
			games.GET("/:uuid", controllers.GetGame(store))
			games.PUT("/:uuid", controllers.PushGame(store))
		}
	}
}
