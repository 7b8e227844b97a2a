package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"salesassistant/services"
)

func statusFor(err error) int {
	var ce *services.CompletionError
	var pe *services.PreconditionError

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &pe):
		return http.StatusConflict
	case errors.As(err, &ce):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// sessionFromPath resolves :id or writes the error response.
func sessionFromPath(c *gin.Context, sessions *services.SessionManager) (*services.Session, bool) {
	sess, err := sessions.Get(services.SessionID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return sess, true
}
