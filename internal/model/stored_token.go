package model

import "time"

// StoredToken is a single named credential in the client-local database.
type StoredToken struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
