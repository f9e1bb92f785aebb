package api

import (
	"net/http"

	"github.com/keenai/agent-chat/internal/pkg/service/chat/producer"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/session"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/stream"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/task"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatInfoResponse struct {
	ChatID       string `json:"chatId"`
	Status       string `json:"status"`
	MessageCount int    `json:"messageCount"`
}

type chatListResponse struct {
	Chats []session.Info `json:"chats"`
	Count int            `json:"count"`
}

type deleteChatResponse struct {
	ChatID string `json:"chatId"`
	Status string `json:"status"`
}

// startChat runs a generation and streams its output as Server-Sent Events.
// Cancelling the request aborts the generation, see the task runner.
func (h *handlers) startChat(w http.ResponseWriter, req *http.Request) {
	chatID := chatIDParam(req)
	body := chatRequest{}
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	if err := h.sessions.AppendMessages(chatID, session.Message{Role: session.RoleUser, Content: body.Message}); err != nil {
		h.logger.Errorf(`cannot persist user message for chat "%s": %s`, chatID, err)
		writeError(w, http.StatusInternalServerError, "cannot persist message")
		return
	}

	emitter, err := stream.NewSSEEmitter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	// Record emitted tokens, so the assistant turn can be persisted.
	recorder := newRecordingEmitter(emitter)
	state, err := h.runner.Run(
		req.Context(),
		chatID,
		h.producer,
		producer.Request{ChatID: chatID, Message: body.Message},
		recorder,
	)
	if errors.Is(err, task.ErrTaskAlreadyRunning) {
		// No event has been written yet, a regular error response is possible.
		writeError(w, http.StatusConflict, "chat is already generating")
		return
	}
	if err != nil {
		// Producer errors are already surfaced as a terminal error event.
		h.logger.Warnf(`chat "%s" finished with state "%s": %s`, chatID, state, err)
	}

	if content := recorder.Content(); content != "" {
		if err := h.sessions.AppendMessages(chatID, session.Message{Role: session.RoleAssistant, Content: content}); err != nil {
			h.logger.Errorf(`cannot persist assistant message for chat "%s": %s`, chatID, err)
		}
	}
}

func (h *handlers) getChat(w http.ResponseWriter, req *http.Request) {
	chatID := chatIDParam(req)
	chat, found, err := h.sessions.Get(chatID)
	if err != nil {
		h.logger.Errorf(`cannot read chat "%s": %s`, chatID, err)
		writeError(w, http.StatusInternalServerError, "cannot read chat")
		return
	}
	if !found {
		// A new chat is not an error, for a better client experience.
		writeJSON(w, http.StatusOK, chatInfoResponse{ChatID: chatID, Status: session.StatusNew})
		return
	}
	writeJSON(w, http.StatusOK, chatInfoResponse{
		ChatID:       chatID,
		Status:       session.StatusActive,
		MessageCount: len(chat.Messages),
	})
}

func (h *handlers) listChats(w http.ResponseWriter, req *http.Request) {
	chats, err := h.sessions.List()
	if err != nil {
		h.logger.Errorf("cannot list chats: %s", err)
		writeError(w, http.StatusInternalServerError, "cannot list chats")
		return
	}
	writeJSON(w, http.StatusOK, chatListResponse{Chats: chats, Count: len(chats)})
}

func (h *handlers) deleteChat(w http.ResponseWriter, req *http.Request) {
	chatID := chatIDParam(req)
	found, err := h.sessions.Delete(chatID)
	if err != nil {
		h.logger.Errorf(`cannot delete chat "%s": %s`, chatID, err)
		writeError(w, http.StatusInternalServerError, "cannot delete chat")
		return
	}
	status := "deleted"
	if !found {
		status = "not_found"
	}
	writeJSON(w, http.StatusOK, deleteChatResponse{ChatID: chatID, Status: status})
}
