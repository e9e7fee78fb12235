package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/444radio/radio-be/internal/api/dto"
	"github.com/444radio/radio-be/internal/api/model"
	"github.com/gin-gonic/gin"
)

// ChatHandler persists the generation assistant's chat history
type ChatHandler struct {
	logger *slog.Logger
	store  ChatStore
}

func NewChatHandler(deps *Dependencies) *ChatHandler {
	return &ChatHandler{logger: deps.Logger, store: deps.Store}
}

// List handles GET /api/v1/chat/messages
func (h *ChatHandler) List(c *gin.Context) {
	msgs, err := h.store.ListChatMessages(c.Request.Context(), CallerID(c))
	if err != nil {
		respondError(c, h.logger, "list chat messages", err)
		return
	}

	out := make([]dto.ChatMessageDTO, len(msgs))
	for i, m := range msgs {
		out[i] = toChatDTO(m)
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// Append handles POST /api/v1/chat/messages
func (h *ChatHandler) Append(c *gin.Context) {
	var req dto.ChatMessageDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "type and content are required")
		return
	}

	msg := fromChatDTO(CallerID(c), req)
	if err := h.store.AppendChatMessage(c.Request.Context(), &msg); err != nil {
		respondError(c, h.logger, "append chat message", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": toChatDTO(msg)})
}

// Replace handles PUT /api/v1/chat/messages with {"messages": [...]}
func (h *ChatHandler) Replace(c *gin.Context) {
	var req dto.ReplaceChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Messages == nil {
		badRequest(c, "messages must be an array")
		return
	}

	userID := CallerID(c)
	msgs := make([]model.ChatMessage, len(*req.Messages))
	for i, m := range *req.Messages {
		if m.Type == "" || m.Content == "" {
			badRequest(c, "each message needs type and content")
			return
		}
		msgs[i] = fromChatDTO(userID, m)
	}

	if err := h.store.ReplaceChatMessages(c.Request.Context(), userID, msgs); err != nil {
		respondError(c, h.logger, "replace chat messages", err)
		return
	}

	h.logger.Info("Chat history replaced", slog.String("user_id", userID), slog.Int("count", len(msgs)))
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(msgs)})
}

// Clear handles DELETE /api/v1/chat/messages
func (h *ChatHandler) Clear(c *gin.Context) {
	if err := h.store.ClearChatMessages(c.Request.Context(), CallerID(c)); err != nil {
		respondError(c, h.logger, "clear chat messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func fromChatDTO(userID string, d dto.ChatMessageDTO) model.ChatMessage {
	m := model.ChatMessage{
		ClerkUserID: userID,
		MessageType: d.Type,
		Content:     d.Content,
	}
	if d.GenerationType != "" {
		m.GenerationType = &d.GenerationType
	}
	if d.GenerationID != "" {
		m.GenerationID = &d.GenerationID
	}
	if len(d.Result) > 0 {
		m.Result = []byte(d.Result)
	}
	if ts, err := time.Parse(time.RFC3339Nano, d.Timestamp); err == nil {
		m.Timestamp = ts
	}
	return m
}
