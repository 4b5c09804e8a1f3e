package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/csickelco/newbie-sub000/internal/logger"
	"github.com/csickelco/newbie-sub000/internal/store"
)

func (a *App) recordEvent(c *gin.Context) {
	userID, ok := authUserIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload recordEventRequest
	if !mustJSON(c, &payload) {
		return
	}
	eventType := strings.ToUpper(strings.TrimSpace(payload.Type))
	if store.Category(eventType) == "" {
		writeError(c, http.StatusBadRequest, "type must be one of FORMULA, BREASTFEED, FEED, PEE, POO, DIAPER, SLEEP, GROWTH, WEIGHT, ACTIVITY, WORD")
		return
	}

	baby, err := a.events.BabyForUser(c.Request.Context(), userID)
	if err != nil {
		a.writeServiceError(c, err, "Failed to resolve baby")
		return
	}

	start := time.Now().UTC()
	if payload.StartTime != nil {
		start = payload.StartTime.UTC()
	}
	event := store.NewEvent{
		BabyID:    baby.ID,
		Type:      eventType,
		Start:     start,
		End:       payload.EndTime,
		Value:     payload.Value,
		Source:    payload.Source,
		CreatedBy: userID,
	}
	eventID, err := a.events.InsertEvent(c.Request.Context(), event)
	if err != nil {
		a.writeServiceError(c, err, "Failed to save event")
		return
	}

	a.metrics.EventRecorded(eventType)
	a.log.Info(c.Request.Context(), "event recorded",
		logger.String("event_id", eventID),
		logger.String("type", eventType),
		logger.String("baby_id", baby.ID),
	)
	c.JSON(http.StatusCreated, recordEventResponse{
		EventID:      eventID,
		Type:         eventType,
		Confirmation: confirmationFor(baby.Name, event),
	})
}
