package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"mendbots/server/catalog"
	"mendbots/server/internal/hub"
	"mendbots/server/internal/net/ws"
	"mendbots/server/internal/telemetry"
)

// HTTPHandlerConfig carries the optional collaborators of the handler set.
// Catalog feeds the structure definition endpoint; ClientDir, when set,
// serves the static client bundle from the root path; Pprof mounts the
// runtime profiling routes under /debug/pprof.
type HTTPHandlerConfig struct {
	ClientDir string
	Logger    telemetry.Logger
	Catalog   *catalog.Catalog
	Pprof     bool
}

type toggleRequest struct {
	ID string `json:"id"`
}

type toggleResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// NewHTTPHandler builds the route set over the hub: join and toggle over
// plain HTTP, the live feed over a websocket, and read-only health,
// diagnostics, and catalog endpoints.
func NewHTTPHandler(h *hub.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string                  `json:"status"`
			ServerTime int64                   `json:"serverTime"`
			TickRate   int                     `json:"tickRate"`
			Hub        hub.DiagnosticsSnapshot `json:"hub"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   h.TickRate(),
			Hub:        h.DiagnosticsSnapshot(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		join := h.Join()
		data, err := json.Marshal(join)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/bots/toggle", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		var req toggleRequest
		if r.Body != nil {
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}
		if req.ID == "" {
			httpError(w, "missing id", nethttp.StatusBadRequest)
			return
		}

		response := toggleResponse{Status: "queued"}
		if _, ok, reason := h.ToggleBot(req.ID); !ok {
			response = toggleResponse{Status: "rejected", Reason: reason}
		}

		data, err := json.Marshal(response)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/structures/catalog", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		var kinds any
		if cfg.Catalog != nil {
			kinds = cfg.Catalog.Kinds()
		} else {
			kinds = []any{}
		}
		payload := struct {
			Catalog any `json:"structureCatalog"`
		}{Catalog: kinds}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	wsHandler := ws.NewHandler(h, ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", wsHandler.Handle)

	if cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
