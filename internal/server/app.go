package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/csickelco/newbie-sub000/internal/config"
	"github.com/csickelco/newbie-sub000/internal/logger"
	"github.com/csickelco/newbie-sub000/internal/metrics"
	"github.com/csickelco/newbie-sub000/internal/store"
	"github.com/csickelco/newbie-sub000/internal/summary"
)

const missingBabyDetail = "Please register a baby before asking for a summary"

type SummaryService interface {
	GetDailySummary(ctx context.Context, userID string) (summary.RenderedResponse, error)
	GetWeeklySummary(ctx context.Context, userID string) (summary.RenderedResponse, error)
	GetLastFeed(ctx context.Context, userID string) (string, error)
}

type EventStore interface {
	BabyForUser(ctx context.Context, userID string) (store.BabyRecord, error)
	InsertEvent(ctx context.Context, event store.NewEvent) (string, error)
}

type App struct {
	cfg       config.Config
	summaries SummaryService
	events    EventStore
	metrics   *metrics.Manager
	log       logger.Logger
}

func New(cfg config.Config, summaries SummaryService, events EventStore, m *metrics.Manager) *App {
	if m == nil {
		m = metrics.NewManager()
	}
	return &App{
		cfg:       cfg,
		summaries: summaries,
		events:    events,
		metrics:   m,
		log:       logger.Named("server"),
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	corsConfig := cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", a.health)
	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.POST("/events", a.recordEvent)
	api.GET("/summaries/daily", a.getDailySummary)
	api.GET("/summaries/weekly", a.getWeeklySummary)
	api.GET("/quick/last-feed", a.quickLastFeed)
	api.POST("/assistants/voice", a.voiceIntent)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "newbie-api",
	})
}

// authMiddleware verifies the bearer token and stores its subject as the
// caller's user id.
func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		c.Set("authUserID", sub)
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func authUserIDFromContext(c *gin.Context) (string, bool) {
	raw, ok := c.Get("authUserID")
	if !ok {
		return "", false
	}
	userID, ok := raw.(string)
	return userID, ok && userID != ""
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// writeServiceError maps report and store failures onto the error envelope.
func (a *App) writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrBabyNotFound):
		writeError(c, http.StatusNotFound, missingBabyDetail)
	case errors.Is(err, store.ErrInvalidEvent):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		a.log.Error(c.Request.Context(), fallback, logger.Error(err))
		writeError(c, http.StatusGatewayTimeout, fallback)
	default:
		a.log.Error(c.Request.Context(), fallback, logger.Error(err))
		writeError(c, http.StatusInternalServerError, fallback)
	}
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
