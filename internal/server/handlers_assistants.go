package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/csickelco/newbie-sub000/internal/store"
)

const (
	intentDailySummary  = "DailySummaryIntent"
	intentWeeklySummary = "WeeklySummaryIntent"
	intentLastFeed      = "LastFeedIntent"
	intentHelp          = "HelpIntent"
)

const helpSpeech = "You can ask for today's summary, this week's summary, or when the baby last ate."

func (a *App) voiceIntent(c *gin.Context) {
	userID, ok := authUserIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload voiceIntentRequest
	if !mustJSON(c, &payload) {
		return
	}

	response, err := a.assistantDialog(c.Request.Context(), userID, strings.TrimSpace(payload.Intent))
	a.metrics.AssistantIntent(response.Intent)
	if err != nil {
		a.writeServiceError(c, err, "Failed to build assistant response")
		return
	}
	c.JSON(http.StatusOK, response)
}

// assistantDialog answers one voice intent. A missing baby is spoken back to
// the caller instead of being returned as an error.
func (a *App) assistantDialog(ctx context.Context, userID, intent string) (voiceIntentResponse, error) {
	switch intent {
	case intentDailySummary, intentWeeklySummary:
		get := a.summaries.GetDailySummary
		if intent == intentWeeklySummary {
			get = a.summaries.GetWeeklySummary
		}
		rendered, err := get(ctx, userID)
		if errors.Is(err, store.ErrBabyNotFound) {
			return voiceIntentResponse{Intent: intent, Speech: missingBabyDetail}, nil
		}
		if err != nil {
			return voiceIntentResponse{Intent: intent}, err
		}
		return voiceIntentResponse{
			Intent:    intent,
			Speech:    rendered.Message,
			CardTitle: rendered.CardTitle,
			CardBody:  rendered.CardBody,
		}, nil

	case intentLastFeed:
		message, err := a.summaries.GetLastFeed(ctx, userID)
		if errors.Is(err, store.ErrBabyNotFound) {
			return voiceIntentResponse{Intent: intent, Speech: missingBabyDetail}, nil
		}
		if err != nil {
			return voiceIntentResponse{Intent: intent}, err
		}
		return voiceIntentResponse{Intent: intent, Speech: message}, nil

	default:
		return voiceIntentResponse{Intent: intentHelp, Speech: helpSpeech}, nil
	}
}
