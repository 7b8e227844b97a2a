package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salesassistant/models"
	"salesassistant/services"
)

type ChatController struct {
	sessions *services.SessionManager
	logger   *zap.Logger
}

func NewChatController(sessions *services.SessionManager, logger *zap.Logger) *ChatController {
	return &ChatController{sessions: sessions, logger: logger}
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	State     string    `json:"state"`
	Messages  int       `json:"messages"`
	Insights  int       `json:"insights"`
	CreatedAt time.Time `json:"created_at"`
}

func toSessionResponse(sess *services.Session) sessionResponse {
	msgs, insights := sess.Counts()
	return sessionResponse{
		ID:        string(sess.ID()),
		Model:     sess.Model(),
		State:     sess.State().String(),
		Messages:  msgs,
		Insights:  insights,
		CreatedAt: sess.CreatedAt(),
	}
}

func (cc *ChatController) CreateSession(c *gin.Context) {
	sess := cc.sessions.Create()
	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

func (cc *ChatController) GetSession(c *gin.Context) {
	sess, ok := sessionFromPath(c, cc.sessions)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (cc *ChatController) EndSession(c *gin.Context) {
	if err := cc.sessions.End(services.SessionID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (cc *ChatController) SetModel(c *gin.Context) {
	var request struct {
		Model string `json:"model" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	}

	sess, ok := sessionFromPath(c, cc.sessions)
	if !ok {
		return
	}
	if err := sess.SetModel(strings.TrimSpace(request.Model)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (cc *ChatController) GetMessages(c *gin.Context) {
	sess, ok := sessionFromPath(c, cc.sessions)
	if !ok {
		return
	}

	messages, err := sess.Transcript()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// HandleChat streams one chat turn as server-sent events: "user" echoes the
// accepted message, "progress" carries the cumulative reply, and the stream
// ends with "done" (the committed assistant message) or "error".
func (cc *ChatController) HandleChat(c *gin.Context) {
	var request struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	sess, ok := sessionFromPath(c, cc.sessions)
	if !ok {
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("user", models.NewMessage(models.RoleUser, request.Message, time.Now()))
	c.Writer.Flush()

	reply, err := sess.SubmitUserMessage(c.Request.Context(), request.Message, func(partial string) {
		c.SSEvent("progress", partial)
		c.Writer.Flush()
	})
	if err != nil {
		cc.logger.Warn("chat turn failed",
			zap.String("session_id", string(sess.ID())),
			zap.Error(err),
		)
		c.SSEvent("error", gin.H{"error": err.Error(), "status": statusFor(err)})
		c.Writer.Flush()
		return
	}

	c.SSEvent("done", reply)
	c.Writer.Flush()
}
