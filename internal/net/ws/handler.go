// Package ws runs the per-owner websocket session: it upgrades the
// connection, registers it with the hub, and pumps client messages into
// simulation commands with sequence-tracked acknowledgements.
package ws

import (
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"mendbots/server/internal/hub"
	"mendbots/server/internal/net/proto"
	"mendbots/server/internal/sim"
	"mendbots/server/internal/telemetry"
)

type subscription interface {
	WriteMessage(messageType int, data []byte) error
	SessionID() uint64
	LastCommandSeq() uint64
	StoreLastCommandSeq(seq uint64)
}

type HandlerConfig struct {
	Logger telemetry.Logger
}

type Handler struct {
	hub      *hub.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(h *hub.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      h,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and serves the session until the socket
// drops. Owners must join over HTTP first; unknown ids are closed with a
// policy violation.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	ownerID := r.URL.Query().Get("id")
	if ownerID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", ownerID, err)
		return
	}

	sub, ok := h.hub.Subscribe(ownerID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown owner")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	h.serve(ownerID, conn, subscription(sub))
}

func (h *Handler) serve(ownerID string, conn *websocket.Conn, session subscription) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.DisconnectSession(ownerID, session.SessionID())
			return
		}
		h.hub.MarkSeen(ownerID)

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", ownerID, err)
			continue
		}

		seq := msg.CommandSeq()

		writeFrame := func(data []byte, err error) bool {
			if err != nil {
				h.logger.Printf("failed to marshal response for %s: %v", ownerID, err)
				return true
			}
			if err := session.WriteMessage(websocket.TextMessage, data); err != nil {
				h.hub.DisconnectSession(ownerID, session.SessionID())
				return false
			}
			return true
		}

		sendDuplicateAck := func() bool {
			if seq == 0 {
				return true
			}
			return writeFrame(proto.EncodeCommandAck(proto.CommandAck{Seq: seq}))
		}

		sendCommandAck := func(cmd sim.Command) bool {
			if seq == 0 {
				return true
			}
			if !writeFrame(proto.EncodeCommandAck(proto.CommandAck{Seq: seq, Tick: cmd.OriginTick})) {
				return false
			}
			session.StoreLastCommandSeq(seq)
			return true
		}

		sendCommandReject := func(reason string) bool {
			if seq == 0 {
				return true
			}
			reject := proto.CommandReject{
				Seq:    seq,
				Reason: reason,
				Retry:  reason == sim.CommandRejectQueueLimit,
			}
			return writeFrame(proto.EncodeCommandReject(reject))
		}

		switch msg.Type {
		case proto.TypeMove, proto.TypeToggleBot:
			if seq > 0 {
				if last := session.LastCommandSeq(); last > 0 && seq <= last {
					if !sendDuplicateAck() {
						return
					}
					continue
				}
			}
			cmd, ok, reason := h.stage(ownerID, msg)
			if seq > 0 {
				if ok {
					if !sendCommandAck(cmd) {
						return
					}
				} else if !sendCommandReject(reason) {
					return
				}
			}
			if !ok && reason == sim.CommandRejectUnknownActor {
				h.logger.Printf("%s ignored for unknown owner %s", msg.Type, ownerID)
			}
		case proto.TypeHeartbeat:
			ack := proto.Heartbeat{
				ServerTime: time.Now().UnixMilli(),
				ClientTime: msg.SentAt,
			}
			data, err := proto.EncodeHeartbeat(ack)
			if err != nil {
				h.logger.Printf("failed to marshal heartbeat ack for %s: %v", ownerID, err)
				continue
			}
			if err := session.WriteMessage(websocket.TextMessage, data); err != nil {
				h.hub.DisconnectSession(ownerID, session.SessionID())
				return
			}
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, ownerID)
		}
	}
}

func (h *Handler) stage(ownerID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	switch msg.Type {
	case proto.TypeToggleBot:
		return h.hub.ToggleBot(ownerID)
	default:
		return h.hub.Move(ownerID, msg.DX, msg.DY)
	}
}
