package daily

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"hueclue/internal/color"
)

var dailyValidatorOnce sync.Once

func registerDailyValidators() {
	dailyValidatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("hslcolor", func(fl validator.FieldLevel) bool {
			c, ok := fl.Field().Interface().(color.HSL)
			if !ok {
				return false
			}
			return c.Valid()
		})
	})
}

// Routes builds the challenge REST surface. The room endpoints live on the
// plain mux; this router only covers the daily mode and is mounted under
// /api/daily by the server.
func (e *Engine) Routes() http.Handler {
	registerDailyValidators()
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/daily")
	api.GET("/current", e.handleCurrent)
	api.POST("/submit", e.handleSubmit)
	api.GET("/leaderboard/:challengeId", e.handleLeaderboard)
	api.GET("/stats/:challengeId", e.handleStats)
	api.GET("/history/:userId", e.handleHistory)
	return router
}

type currentQuery struct {
	UserID string `form:"userId"`
}

type submitRequest struct {
	ChallengeID string    `json:"challengeId" binding:"required"`
	UserID      string    `json:"userId" binding:"required,max=64"`
	UserName    string    `json:"userName" binding:"required,max=64"`
	Fingerprint string    `json:"fingerprint" binding:"max=128"`
	Color       color.HSL `json:"color" binding:"hslcolor"`
}

type challengeURI struct {
	ChallengeID string `uri:"challengeId" binding:"required"`
}

type userURI struct {
	UserID string `uri:"userId" binding:"required"`
}

func (e *Engine) handleCurrent(c *gin.Context) {
	var query currentQuery
	if !bindQuery(c, &query) {
		return
	}
	challenge, sub, err := e.Current(strings.TrimSpace(query.UserID))
	if err != nil {
		writeDailyError(c, err)
		return
	}
	payload := gin.H{"challenge": challengePayload(challenge)}
	if sub != nil {
		payload["submission"] = submissionPayload(sub)
	}
	c.JSON(http.StatusOK, payload)
}

func (e *Engine) handleSubmit(c *gin.Context) {
	var req submitRequest
	messages := bindMessages{
		"ChallengeID": {"required": "challengeId is required"},
		"UserID":      {"required": "userId is required"},
		"UserName":    {"required": "userName is required", "max": "userName must be 64 characters or fewer"},
		"Color":       {"hslcolor": "color components are out of range"},
	}
	if !bindJSON(c, &req, messages, "invalid submission") {
		return
	}
	sub, rank, err := e.Submit(req.ChallengeID, req.UserID, strings.TrimSpace(req.UserName), req.Fingerprint, req.Color)
	if err != nil {
		writeDailyError(c, err)
		return
	}
	payload := submissionPayload(sub)
	payload["rank"] = rank
	c.JSON(http.StatusCreated, payload)
}

func (e *Engine) handleLeaderboard(c *gin.Context) {
	var uri challengeURI
	if !bindURI(c, &uri) {
		return
	}
	challenge, entries, err := e.Leaderboard(uri.ChallengeID)
	if err != nil {
		writeDailyError(c, err)
		return
	}
	rows := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, entryPayload(entry))
	}
	payload := gin.H{
		"challenge": challengePayload(challenge),
		"entries":   rows,
	}
	if userID := strings.TrimSpace(c.Query("userId")); userID != "" {
		for _, entry := range entries {
			if entry.UserID == userID {
				payload["me"] = entryPayload(entry)
				break
			}
		}
	}
	c.JSON(http.StatusOK, payload)
}

func (e *Engine) handleStats(c *gin.Context) {
	var uri challengeURI
	if !bindURI(c, &uri) {
		return
	}
	challenge, err := e.Stats(uri.ChallengeID)
	if err != nil {
		writeDailyError(c, err)
		return
	}
	n := challenge.TotalSubmissions
	c.JSON(http.StatusOK, gin.H{
		"challengeId":      challenge.ID,
		"totalSubmissions": n,
		"averageColor":     challenge.Average(),
		"stdDev": gin.H{
			"h": challenge.HStats.StdDev(n),
			"s": challenge.SStats.StdDev(n),
			"l": challenge.LStats.StdDev(n),
		},
	})
}

func (e *Engine) handleHistory(c *gin.Context) {
	var uri userURI
	if !bindURI(c, &uri) {
		return
	}
	entries, err := e.History(uri.UserID)
	if err != nil {
		writeDailyError(c, err)
		return
	}
	rows := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, entryPayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{"entries": rows})
}

func challengePayload(challenge *Challenge) gin.H {
	return gin.H{
		"challengeId":      challenge.ID,
		"prompt":           challenge.Prompt,
		"validFrom":        challenge.ValidFrom.Format(time.RFC3339),
		"validUntil":       challenge.ValidUntil.Format(time.RFC3339),
		"totalSubmissions": challenge.TotalSubmissions,
	}
}

func submissionPayload(sub *Submission) gin.H {
	return gin.H{
		"challengeId":         sub.ChallengeID,
		"userId":              sub.UserID,
		"userName":            sub.UserName,
		"color":               sub.Color,
		"score":               sub.Score,
		"distanceFromAverage": sub.DistanceFromAverage,
		"averageAtSubmission": sub.AverageAtSubmission,
		"submittedAt":         sub.SubmittedAt.Format(time.RFC3339),
	}
}

func entryPayload(entry LeaderboardEntry) gin.H {
	return gin.H{
		"rank":        entry.Rank,
		"userId":      entry.UserID,
		"userName":    entry.UserName,
		"color":       entry.Color,
		"score":       entry.Score,
		"submittedAt": entry.SubmittedAt.Format(time.RFC3339),
	}
}

func writeDailyError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, ErrExpired):
		status = http.StatusGone
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
