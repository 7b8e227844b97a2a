package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salesassistant/controllers"
	"salesassistant/middlewares"
)

func SetupRouter(chat *controllers.ChatController, insights *controllers.InsightController, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.Recovery(logger))
	r.Use(middlewares.Logger(logger))
	r.Use(middlewares.CORS())

	// セッション管理
	r.POST("/sessions", chat.CreateSession)
	r.GET("/sessions/:id", chat.GetSession)
	r.DELETE("/sessions/:id", chat.EndSession)
	r.PUT("/sessions/:id/model", chat.SetModel)

	// チャット
	r.GET("/sessions/:id/messages", chat.GetMessages)
	r.POST("/sessions/:id/chat", chat.HandleChat)

	// セールスインサイト
	r.POST("/sessions/:id/insights", insights.GenerateInsight)
	r.GET("/sessions/:id/insights", insights.GetInsights)
	r.GET("/sessions/:id/insights/:index", insights.GetInsight)

	return r
}
