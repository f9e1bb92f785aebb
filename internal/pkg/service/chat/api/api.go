// Package api exposes the chat service over HTTP.
// The handlers are thin wrappers, the logic lives in the task, coordinator
// and session packages.
package api

import (
	"io"
	"net/http"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/jonboulle/clockwork"

	"github.com/keenai/agent-chat/internal/pkg/encoding/json"
	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/coordinator"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/producer"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/session"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/stopsignal"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/task"
	"github.com/keenai/agent-chat/internal/pkg/service/common/httpserver"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

const maxBodySize = 1 << 20

type dependencies interface {
	Logger() log.Logger
	Clock() clockwork.Clock
	StopSignalBus() stopsignal.Bus
	TaskRunner() *task.Runner
	StopCoordinator() *coordinator.Coordinator
	SessionStore() *session.Store
	TokenProducer() producer.Producer
}

type handlers struct {
	logger      log.Logger
	clock       clockwork.Clock
	bus         stopsignal.Bus
	runner      *task.Runner
	coordinator *coordinator.Coordinator
	sessions    *session.Store
	producer    producer.Producer
}

// Router builds the HTTP handler of the service.
func Router(d dependencies) http.Handler {
	h := &handlers{
		logger:      d.Logger().AddPrefix("[api]"),
		clock:       d.Clock(),
		bus:         d.StopSignalBus(),
		runner:      d.TaskRunner(),
		coordinator: d.StopCoordinator(),
		sessions:    d.SessionStore(),
		producer:    d.TokenProducer(),
	}

	mux := httptreemux.NewContextMux()
	grp := mux.NewGroup("/api/v1")
	grp.POST("/chat/:chatId", h.startChat)
	grp.GET("/chat/:chatId", h.getChat)
	grp.DELETE("/chat/:chatId", h.deleteChat)
	grp.GET("/chats", h.listChats)
	grp.POST("/stop/:chatId", h.stopChat)
	grp.POST("/stop", h.stopBulk)
	mux.GET("/health", h.health)

	return httpserver.Wrap(mux,
		httpserver.Recovery(d.Logger()),
		httpserver.RequestLogger(d.Logger()),
	)
}

func chatIDParam(req *http.Request) string {
	return httptreemux.ContextParams(req.Context())["chatId"]
}

func decodeBody(req *http.Request, target any) error {
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize))
	if err != nil {
		return errors.PrefixError(err, "cannot read request body")
	}
	return json.Decode(data, target)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(json.MustEncode(v, false))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
