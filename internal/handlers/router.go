package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/middleware"
	"fairplay-backend/internal/services"
)

type RouterDeps struct {
	Config     *config.Config
	Logger     *zap.Logger
	JWT        *services.JWTService
	Limiter    services.RateLimiter
	Auth       *AuthHandler
	User       *UserHandler
	Game       *GameHandler
	WebSockets *WebSocketHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(d.Logger), middleware.CORS())

	router.POST("/auth/token", d.Auth.IssueToken)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(d.JWT), middleware.RateLimitMiddleware(d.Limiter, d.Config))
	{
		protected.GET("/me", d.User.GetCurrentUser)
		protected.GET("/leaderboard", d.User.Leaderboard)
		protected.GET("/transactions", d.User.Transactions)

		if d.WebSockets != nil {
			protected.GET("/ws", d.WebSockets.HandleWebSocket)
		}

		games := protected.Group("/games")
		{
			games.POST("/play", d.Game.Play)
			games.GET("/balance", d.User.GetBalance)
			games.GET("/verification", d.Game.GetVerificationData)
			games.POST("/verify", d.Game.VerifyGame)

			mines := games.Group("/mines")
			{
				mines.POST("/start", d.Game.StartMines)
				mines.POST("/reveal", d.Game.RevealMine)
				mines.GET("", d.Game.GetRound)
				mines.DELETE("", d.Game.AbandonRound)
			}
		}

		seeds := protected.Group("/seeds")
		{
			seeds.PUT("/client", d.Game.SetClientSeed)
			seeds.POST("/rotate", d.Game.RotateServerSeed)
			seeds.POST("/reveal", d.Game.RevealServerSeed)
		}

		wallet := protected.Group("/wallet")
		{
			wallet.POST("/deposit", d.User.Deposit)
			wallet.POST("/withdraw", d.User.Withdraw)
			wallet.POST("/tip", d.User.Tip)
		}
	}

	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.JWT), middleware.AdminGuard())
	{
		admin.POST("/grant", d.User.AdminGrant)
	}

	return router
}
