package controllers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salesassistant/models"
	"salesassistant/services"
)

type InsightController struct {
	sessions *services.SessionManager
	logger   *zap.Logger
}

func NewInsightController(sessions *services.SessionManager, logger *zap.Logger) *InsightController {
	return &InsightController{sessions: sessions, logger: logger}
}

// GenerateInsight accepts the sales form, as multipart (with an optional
// product_overview upload) or JSON.
func (ic *InsightController) GenerateInsight(c *gin.Context) {
	sess, ok := sessionFromPath(c, ic.sessions)
	if !ok {
		return
	}

	var input models.SalesInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("product_overview")
		switch {
		case err == nil:
			input.UploadedFileName = file.Filename
		case !errors.Is(err, http.ErrMissingFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	// JSON bodies may carry uploaded_file_name too, so check it on every path.
	if input.UploadedFileName != "" {
		if !models.IsSupportedOverview(input.UploadedFileName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product_overview must be a pdf, docx or txt file"})
			return
		}
		input.UploadedFileName = filepath.Base(input.UploadedFileName)
	}

	insight, err := sess.SubmitSalesInput(c.Request.Context(), input)
	if err != nil {
		ic.logger.Warn("insight generation failed",
			zap.String("session_id", string(sess.ID())),
			zap.Error(err),
		)
		c.JSON(statusFor(err), gin.H{
			"submitted": input,
			"error":     "An error occurred: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submitted": input,
		"insight":   insight,
	})
}

func (ic *InsightController) GetInsights(c *gin.Context) {
	sess, ok := sessionFromPath(c, ic.sessions)
	if !ok {
		return
	}

	insights, err := sess.Insights()
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"insights": insights}
	if len(insights) == 0 {
		resp["message"] = "No insights saved yet."
	}
	c.JSON(http.StatusOK, resp)
}

func (ic *InsightController) GetInsight(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a number"})
		return
	}

	sess, ok := sessionFromPath(c, ic.sessions)
	if !ok {
		return
	}

	insight, found, err := sess.Insight(index)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "insight not found"})
		return
	}
	c.JSON(http.StatusOK, insight)
}
