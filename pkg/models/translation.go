package models

import "time"

// Translation maps a detector label to its spanish and quechua forms
type Translation struct {
	ID        int64     `json:"id" db:"id"`
	Label     string    `json:"label" db:"label"`
	Spanish   string    `json:"spanish" db:"spanish"`
	Quechua   string    `json:"quechua" db:"quechua"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
