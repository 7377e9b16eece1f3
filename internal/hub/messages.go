package hub

import (
	"mendbots/server/internal/bot"
	state "mendbots/server/internal/state"
	"mendbots/server/internal/world"
	"mendbots/server/logging"
)

// ProtocolVersion tags every payload the hub emits so clients can detect
// an incompatible server before interpreting the rest of the message.
const ProtocolVersion = 1

// JoinResponse is the first payload a client receives after joining. It
// carries the complete world snapshot, including static obstacles, so the
// client can render immediately instead of waiting for the next broadcast.
type JoinResponse struct {
	Ver        int               `json:"ver"`
	ID         string            `json:"id"`
	Tick       uint64            `json:"t"`
	Owners     []state.Actor     `json:"owners"`
	Bots       []state.Actor     `json:"bots"`
	Structures []world.Structure `json:"structures"`
	Obstacles  []world.Obstacle  `json:"obstacles"`
	Containers []world.Container `json:"containers"`
	BotStatus  []bot.Status      `json:"botStatus"`
	Config     world.Config      `json:"config"`
}

// stateMessage is the periodic frame pushed to every subscriber.
// Obstacles are omitted; they never change after generation and ride along
// in the join response instead.
type stateMessage struct {
	Ver        int               `json:"ver"`
	Type       string            `json:"type"`
	Tick       uint64            `json:"t"`
	ServerTime int64             `json:"serverTime"`
	Owners     []state.Actor     `json:"owners"`
	Bots       []state.Actor     `json:"bots"`
	Structures []world.Structure `json:"structures"`
	Containers []world.Container `json:"containers"`
	BotStatus  []bot.Status      `json:"botStatus"`
	Config     world.Config      `json:"config"`
}

// OwnerDiagnostics summarizes one owner's connection and bot state.
type OwnerDiagnostics struct {
	Ver        int    `json:"ver"`
	ID         string `json:"id"`
	Subscribed bool   `json:"subscribed"`
	LastSeen   int64  `json:"lastSeen"`
	BotActive  bool   `json:"botActive"`
}

// DiagnosticsSnapshot is the operator view served over HTTP.
type DiagnosticsSnapshot struct {
	Ver             int                     `json:"ver"`
	Tick            uint64                  `json:"t"`
	Owners          []OwnerDiagnostics      `json:"owners"`
	BotStatus       []bot.Status            `json:"botStatus"`
	PendingCommands int                     `json:"pendingCommands"`
	Metrics         logging.MetricsSnapshot `json:"metrics"`
}
