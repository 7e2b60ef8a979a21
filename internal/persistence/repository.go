package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"pong/internal/models"
)

var ErrRecordNotFound = errors.New("match record not found")

type MatchRepository struct {
	DB *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{DB: db}
}

func (r *MatchRepository) Create(ctx context.Context, rec *models.MatchRecord) error {
	if rec.Winner == "" {
		rec.Winner = models.NoWinner
	}
	if err := r.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create match record %s: %w", rec.RoomName, err)
	}
	return nil
}

// Finish stores the final score and winner of a room.
func (r *MatchRepository) Finish(ctx context.Context, roomName string, score [2]int, winner string, endedAt time.Time) error {
	res := r.DB.WithContext(ctx).
		Model(&models.MatchRecord{}).
		Where("room_name = ?", roomName).
		Updates(map[string]interface{}{
			"score1":   score[0],
			"score2":   score[1],
			"winner":   winner,
			"ended_at": endedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("finish match record %s: %w", roomName, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finish match record %s: %w", roomName, ErrRecordNotFound)
	}
	return nil
}

func (r *MatchRepository) GetByRoomName(ctx context.Context, roomName string) (*models.MatchRecord, error) {
	var rec models.MatchRecord
	if err := r.DB.WithContext(ctx).Where("room_name = ?", roomName).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListByPlayer returns the most recent records a user took part in.
func (r *MatchRepository) ListByPlayer(ctx context.Context, userKey string, limit int) ([]models.MatchRecord, error) {
	var recs []models.MatchRecord
	err := r.DB.WithContext(ctx).
		Where("player1 = ? OR player2 = ?", userKey, userKey).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}
