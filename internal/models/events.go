package models

import "encoding/json"

// Inbound frame types.
const (
	FrameMatchmaking       = "matchmaking"
	FrameCancelMatchmaking = "cancelMatchmaking"
	FrameJoinRoom          = "JoinRoom"
	FrameLeaveRoom         = "LeaveRoom"
	FrameMove              = "move"
)

// Outbound event types.
const (
	EventRoomCreated    = "RoomCreated"
	EventMatchFound     = "matchFound"
	EventGameStarted    = "GameStarted"
	EventNewGame        = "NewGame"
	EventBallPosition   = "GetBallPosition"
	EventUpdatePosition = "UpdatePosition"
	EventUpdateScore    = "UpdateScore"
	EventGameEnded      = "GameEnded"
	EventPlayerLeft     = "playerLeft"
	EventRoomDeleted    = "RoomDeleted"
)

// Event is the outbound envelope written to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Frame is the inbound envelope; Data is decoded per Type.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type RoomReq struct {
	RoomName string `json:"roomName"`
}

type MoveReq struct {
	IdGame   string  `json:"idGame"`
	Player   Slot    `json:"player"`
	Position float64 `json:"position"`
}

type RoomCreatedPayload struct {
	Name string `json:"name"`
}

type RoomNamePayload struct {
	RoomName string `json:"roomName"`
}

type BallPayload struct {
	Ball Ball `json:"ball"`
}

type PositionPayload struct {
	PlayerRole Slot    `json:"playerRole"`
	Position   float64 `json:"position"`
}

type ScorePayload struct {
	Score [2]int `json:"score"`
}

type GameEndedPayload struct {
	Score  [2]int `json:"score"`
	Winner Slot   `json:"winner"`
}

type PlayerLeftPayload struct {
	Player Slot   `json:"player"`
	Score  [2]int `json:"score"`
}
