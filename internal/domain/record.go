package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HealthRecord is one dated observation owned by exactly one user. Every
// query against it must be scoped by (UserID, ID); never by ID alone.
type HealthRecord struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Date            time.Time `gorm:"not null" json:"date"`
	BodyTemperature *float64  `json:"body_temperature"`
	BloodPressure   string    `gorm:"size:16" json:"blood_pressure"`
	HeartRate       *int      `json:"heart_rate"`
	WaterIntake     *int      `json:"water_intake"`
	SleepDuration   *float64  `json:"sleep_duration"`
	StressLevel     *int      `json:"stress_level"`
	Notes           string    `gorm:"type:text" json:"notes"`
	PhotoURL        string    `gorm:"size:255" json:"photo_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (r *HealthRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
