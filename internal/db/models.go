package db

import (
	"time"

	"gorm.io/datatypes"
)

type Game struct {
	ID        uint      `gorm:"primaryKey"`
	RoomCode  string    `gorm:"size:8;uniqueIndex;not null"`
	Status    string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Events    []Event
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    uint           `gorm:"index;not null"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

type Challenge struct {
	ID               string    `gorm:"primaryKey;size:10"`
	Prompt           string    `gorm:"size:140;not null"`
	ValidFrom        time.Time `gorm:"not null"`
	ValidUntil       time.Time `gorm:"not null"`
	TotalSubmissions int       `gorm:"not null;default:0"`
	HMean            float64   `gorm:"not null;default:0"`
	HM2              float64   `gorm:"not null;default:0"`
	SMean            float64   `gorm:"not null;default:0"`
	SM2              float64   `gorm:"not null;default:0"`
	LMean            float64   `gorm:"not null;default:0"`
	LM2              float64   `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
	Submissions      []Submission
}

type Submission struct {
	ID                  uint           `gorm:"primaryKey"`
	ChallengeID         string         `gorm:"size:10;index;not null;uniqueIndex:idx_submissions_challenge_user"`
	UserID              string         `gorm:"size:64;not null;uniqueIndex:idx_submissions_challenge_user"`
	UserName            string         `gorm:"size:64;not null"`
	Fingerprint         string         `gorm:"size:128"`
	Color               datatypes.JSON `gorm:"type:jsonb;not null"`
	AverageAtSubmission datatypes.JSON `gorm:"type:jsonb;not null"`
	Score               int            `gorm:"not null"`
	DistanceFromAverage float64        `gorm:"not null"`
	SubmittedAt         time.Time      `gorm:"not null"`
	CreatedAt           time.Time      `gorm:"not null"`
}
