package models

import "time"

// Court geometry and pacing, in normalized court units.
const (
	BallRadius       = 0.015
	BallVelocity     = 0.001
	BallPlayingSpeed = 10
	BallStartX       = 0.5
	BallStartY       = 0.5

	PaddleMargin = 0.02
	PaddleSpan   = 0.2
	PaddleMin    = 0.0
	PaddleMax    = 0.8

	WinningScore = 5
)

// Slot identifies a seat in a room as seen by clients.
type Slot int

const (
	SlotNone      Slot = 0
	SlotPlayer1   Slot = 1
	SlotPlayer2   Slot = 2
	SlotSpectator Slot = 3
)

type RoomState string

const (
	RoomWaiting  RoomState = "waiting"
	RoomPlaying  RoomState = "playing"
	RoomFinished RoomState = "finished"
)

// Identity binds one live connection to the persistent user behind it.
type Identity struct {
	ConnectionID string `json:"connectionId"`
	UserKey      string `json:"userKey"`
}

type Ball struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
	Speed     float64 `json:"speed"`
	Radius    float64 `json:"radius"`
}

// NewBall returns a centered, motionless ball.
func NewBall() Ball {
	return Ball{
		X:         BallStartX,
		Y:         BallStartY,
		VelocityX: BallVelocity,
		VelocityY: BallVelocity,
		Speed:     0,
		Radius:    BallRadius,
	}
}

type GameState struct {
	Player1Position float64 `json:"player1Position"`
	Player2Position float64 `json:"player2Position"`
	Player1Score    int     `json:"player1Score"`
	Player2Score    int     `json:"player2Score"`
	IsPlaying       bool    `json:"isPlaying"`
	Ball            Ball    `json:"ball"`
}

func NewGameState() GameState {
	return GameState{Ball: NewBall()}
}

func (g GameState) Score() [2]int {
	return [2]int{g.Player1Score, g.Player2Score}
}

// Decided reports whether either side reached the winning score.
func (g GameState) Decided() bool {
	return g.Player1Score >= WinningScore || g.Player2Score >= WinningScore
}

type Resp struct {
	OK   bool        `json:"ok"`
	Info interface{} `json:"info"`
}

// RoomInfo is the externally visible snapshot of an active room.
type RoomInfo struct {
	Name      string    `json:"name"`
	Player1   string    `json:"player1"`
	Player2   string    `json:"player2"`
	State     RoomState `json:"state"`
	Score     [2]int    `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

type SlotResp struct {
	RoomName string `json:"roomName"`
	Player   Slot   `json:"player"`
}

type PlayersResp struct {
	Connected int   `json:"connected"`
	Waiting   int64 `json:"waiting"`
	Rooms     int   `json:"rooms"`
}

type InviteReq struct {
	Opponent string `json:"opponent"`
}

type InviteResp struct {
	RoomName string `json:"roomName"`
}
