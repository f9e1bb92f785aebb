package api

import (
	"net/http"

	"github.com/keenai/agent-chat/internal/pkg/service/chat/coordinator"
)

type stopResponse struct {
	ChatID  string `json:"chatId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type stopBulkRequest struct {
	ChatIDs []string `json:"chatIds"`
}

type stopBulkResponse struct {
	Results []stopResponse `json:"results"`
}

// stopChat accepts a stop request for any chat ID, running anywhere
// in the fleet or not running at all.
func (h *handlers) stopChat(w http.ResponseWriter, req *http.Request) {
	result := h.coordinator.RequestStop(req.Context(), chatIDParam(req))
	if !result.Accepted {
		writeJSON(w, http.StatusInternalServerError, toStopResponse(result))
		return
	}
	writeJSON(w, http.StatusOK, toStopResponse(result))
}

// stopBulk applies the stop semantics per ID, failures are isolated.
func (h *handlers) stopBulk(w http.ResponseWriter, req *http.Request) {
	body := stopBulkRequest{}
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(body.ChatIDs) == 0 {
		writeError(w, http.StatusBadRequest, "chatIds must not be empty")
		return
	}

	results := h.coordinator.RequestStopBulk(req.Context(), body.ChatIDs)
	out := stopBulkResponse{Results: make([]stopResponse, 0, len(results))}
	for _, result := range results {
		out.Results = append(out.Results, toStopResponse(result))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) health(w http.ResponseWriter, req *http.Request) {
	busStatus := "connected"
	status := "healthy"
	if !h.bus.IsReachable(req.Context()) {
		busStatus = "disconnected"
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "signalBus": busStatus})
}

func toStopResponse(result coordinator.Result) stopResponse {
	status := "accepted"
	if !result.Accepted {
		status = "rejected"
	}
	return stopResponse{ChatID: result.TaskID, Status: status, Message: result.Message}
}
