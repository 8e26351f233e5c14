// ABOUTME: HTTP handlers for the bridge control surface
// ABOUTME: Implements settings, status, health and the I/Q monitor websocket
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/harper/rpitx-bridge/internal/application/manager"
	"github.com/harper/rpitx-bridge/internal/domain"
	"github.com/harper/rpitx-bridge/internal/domain/drain"
	"github.com/harper/rpitx-bridge/internal/domain/transmitter"
	"github.com/harper/rpitx-bridge/internal/infrastructure/settings"
)

// maxSettingBody bounds a settings write; values are short decimal text.
const maxSettingBody = 64

type SettingsHandler struct {
	mgr *manager.Manager
}

func NewSettingsHandler(mgr *manager.Manager) *SettingsHandler {
	return &SettingsHandler{mgr: mgr}
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Path is /settings or /settings/{name}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 0 || parts[0] != "settings" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}

	store := h.mgr.Settings()

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(store.Tuning())
		return
	}

	name := parts[1]

	switch r.Method {
	case http.MethodGet:
		text, err := store.Show(name)
		if err != nil {
			writeSettingsError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, text)

	case http.MethodPut, http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if err := store.Store(name, string(body)); err != nil {
			writeSettingsError(w, err)
			return
		}
		text, _ := store.Show(name)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, text)

	default:
		w.Header().Set("Allow", "GET, PUT, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeSettingsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settings.ErrUnknownSetting):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, settings.ErrInvalidValue):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type StatusHandler struct {
	mgr *manager.Manager
}

func NewStatusHandler(mgr *manager.Manager) *StatusHandler {
	return &StatusHandler{mgr: mgr}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type sessionInfo struct {
		ID      string `json:"id"`
		Pointer int    `json:"pointer"`
	}

	type response struct {
		Endpoint    string             `json:"endpoint"`
		Cursor      int                `json:"cursor"`
		Session     *sessionInfo       `json:"session,omitempty"`
		Engine      drain.Stats        `json:"engine"`
		Transmitter *transmitter.Stats `json:"transmitter,omitempty"`
		Monitors    int                `json:"monitors"`
		Tuning      domain.Tuning      `json:"tuning"`
	}

	engine := h.mgr.Engine()
	active := engine.Active()

	resp := response{
		Endpoint: active.String(),
		Cursor:   engine.Cursor(),
		Engine:   engine.Stats(),
		Tuning:   h.mgr.Settings().Tuning(),
	}

	if sess := h.mgr.Card().Session(active); sess != nil {
		resp.Session = &sessionInfo{ID: sess.ID(), Pointer: sess.Pointer()}
	}

	if tx := h.mgr.Transmitter(); tx != nil {
		stats := tx.Stats()
		resp.Transmitter = &stats
		resp.Monitors = tx.ClientCount()
		if stats.Running {
			resp.Tuning = stats.Tuning
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	type response struct {
		OK bool `json:"ok"`
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response{OK: true})
}

// MonitorHandler streams every non-empty transmitter read to a websocket
// client as one binary message.
type MonitorHandler struct {
	mgr      *manager.Manager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewMonitorHandler(mgr *manager.Manager, logger *slog.Logger) *MonitorHandler {
	return &MonitorHandler{
		mgr: mgr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
		},
		logger: logger,
	}
}

func (h *MonitorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tx := h.mgr.Transmitter()
	if tx == nil {
		http.Error(w, "transmitter disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("monitor upgrade failed", "err", err)
		return
	}

	client := &transmitter.Client{ID: fmt.Sprintf("ws-%p", conn)}
	chunks := tx.Subscribe(client)
	h.logger.Info("monitor connected", "client", client.ID, "remote", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(conn, chunks)
	}()

	// Read pump: the client sends nothing useful, a read error means it left.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	tx.Unsubscribe(client)
	<-done
	h.logger.Info("monitor disconnected", "client", client.ID)
}

func writePump(conn *websocket.Conn, chunks <-chan []byte) {
	defer conn.Close()
	for chunk := range chunks {
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, []byte{})
}
