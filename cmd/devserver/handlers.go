package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/domain"
)

func setupRouter(store *Store, mode string) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/history", handleHistory(store))
	api.POST("/messages", handleSend(store))
	api.POST("/reactions", handleReactionAdd(store))
	api.GET("/reactions", handleReactionCounts(store))
	api.GET("/cursor", handleCursorGet(store))
	api.PUT("/cursor", handleCursorSet(store))

	return r
}

func handleHistory(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		meeting := c.Query("meeting")
		requester := c.Query("requester")
		if meeting == "" || requester == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "meeting and requester are required"})
			return
		}
		isHost, _ := strconv.ParseBool(c.DefaultQuery("host", "false"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		msgs, total, err := store.History(c.Request.Context(), meeting, requester, isHost, limit, offset)
		if err != nil {
			log.Error().Err(err).Str("module", "devserver").Msg("history query")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
			return
		}
		if msgs == nil {
			msgs = []domain.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs, "total_count": total})
	}
}

type sendRequest struct {
	Meeting    string   `json:"meeting" binding:"required"`
	Sender     string   `json:"sender" binding:"required"`
	SenderName string   `json:"sender_name"`
	Body       string   `json:"body" binding:"required"`
	Visibility string   `json:"visibility" binding:"required,oneof=public host subset"`
	Recipients []string `json:"recipients"`
	TempID     string   `json:"temp_id"`
}

func handleSend(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Visibility == "subset" && len(req.Recipients) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "subset visibility requires recipients"})
			return
		}

		id, createdAt, err := store.SaveMessage(c.Request.Context(), req.Meeting, req.Sender, req.SenderName, req.Body, req.Visibility, req.TempID, req.Recipients)
		if err != nil {
			log.Error().Err(err).Str("module", "devserver").Msg("message save")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "message save failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "timestamp": createdAt})
	}
}

type reactionRequest struct {
	Meeting string `json:"meeting" binding:"required"`
	Sender  string `json:"sender" binding:"required"`
	Emoji   string `json:"emoji" binding:"required"`
}

func handleReactionAdd(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := store.AddReaction(c.Request.Context(), req.Meeting, req.Emoji); err != nil {
			log.Error().Err(err).Str("module", "devserver").Msg("reaction add")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reaction add failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	}
}

func handleReactionCounts(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		meeting := c.Query("meeting")
		if meeting == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "meeting is required"})
			return
		}
		counts, err := store.ReactionCounts(c.Request.Context(), meeting)
		if err != nil {
			log.Error().Err(err).Str("module", "devserver").Msg("reaction counts")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reaction counts failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"counts": counts})
	}
}

func handleCursorGet(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		meeting, user := c.Query("meeting"), c.Query("user")
		if meeting == "" || user == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "meeting and user are required"})
			return
		}
		messageID, ts, found, err := store.GetCursor(c.Request.Context(), meeting, user)
		if err != nil {
			log.Error().Err(err).Str("module", "devserver").Msg("cursor get")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor get failed"})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no cursor"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message_id": messageID, "timestamp": ts})
	}
}

type cursorRequest struct {
	Meeting   string    `json:"meeting" binding:"required"`
	User      string    `json:"user" binding:"required"`
	MessageID string    `json:"message_id" binding:"required"`
	Timestamp time.Time `json:"timestamp" binding:"required"`
}

func handleCursorSet(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cursorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := store.SetCursor(c.Request.Context(), req.Meeting, req.User, req.MessageID, req.Timestamp); err != nil {
			log.Error().Err(err).Str("module", "devserver").Msg("cursor set")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor set failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
