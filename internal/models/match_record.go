package models

import (
	"time"

	"gorm.io/gorm"
)

const NoWinner = "none"

// MatchRecord is the durable row kept for every room that was ever created.
type MatchRecord struct {
	gorm.Model
	RoomName  string     `gorm:"uniqueIndex;not null" json:"roomName"`
	Player1   string     `gorm:"index;not null" json:"player1"`
	Player2   string     `gorm:"index;not null" json:"player2"`
	Score1    int        `gorm:"not null;default:0" json:"score1"`
	Score2    int        `gorm:"not null;default:0" json:"score2"`
	Initiator string     `gorm:"not null" json:"playerName"`
	Winner    string     `gorm:"not null;default:'none'" json:"winner"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

func (MatchRecord) TableName() string {
	return "match_records"
}
