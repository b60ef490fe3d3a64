package models

import (
	"time"

	"github.com/lib/pq"
)

// Question is one multiple-choice entry of the quiz bank.
type Question struct {
	ID            string         `db:"id" json:"id"`
	Question      string         `db:"question" json:"question"`
	Options       pq.StringArray `db:"options" json:"options"`
	CorrectAnswer int            `db:"correct_answer" json:"correct_answer"`
	Explanation   *string        `db:"explanation" json:"explanation"`
	Category      string         `db:"category" json:"category"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// NewQuestion carries the fields needed to add a question to the bank.
type NewQuestion struct {
	Question      string
	Options       []string
	CorrectAnswer int
	Explanation   *string
	Category      string
}
