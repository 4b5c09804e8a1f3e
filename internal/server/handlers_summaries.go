package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *App) getDailySummary(c *gin.Context) {
	userID, ok := authUserIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	rendered, err := a.summaries.GetDailySummary(c.Request.Context(), userID)
	if err != nil {
		a.writeServiceError(c, err, "Failed to build daily summary")
		return
	}
	c.JSON(http.StatusOK, rendered)
}

func (a *App) getWeeklySummary(c *gin.Context) {
	userID, ok := authUserIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	rendered, err := a.summaries.GetWeeklySummary(c.Request.Context(), userID)
	if err != nil {
		a.writeServiceError(c, err, "Failed to build weekly summary")
		return
	}
	c.JSON(http.StatusOK, rendered)
}

func (a *App) quickLastFeed(c *gin.Context) {
	userID, ok := authUserIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	message, err := a.summaries.GetLastFeed(c.Request.Context(), userID)
	if err != nil {
		a.writeServiceError(c, err, "Failed to load last feed")
		return
	}
	c.JSON(http.StatusOK, lastFeedResponse{Message: message})
}
