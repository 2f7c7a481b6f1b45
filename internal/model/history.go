package model

import "time"

type HistoryEntry struct {
	ID        ID        `json:"id"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	Test      Test      `json:"test"`
}
