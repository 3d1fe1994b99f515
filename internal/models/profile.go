package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/google/uuid"
)

// Profile is the stored form of profile.Profile, one row per user.
type Profile struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Email         string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	FirstName     string    `gorm:"size:100" json:"first_name"`
	LastName      string    `gorm:"size:100" json:"last_name"`
	Phone         string    `gorm:"size:32" json:"phone"`
	Address       string    `gorm:"size:255" json:"address"`
	Location      *string   `gorm:"size:50" json:"location"`
	LoyaltyPoints int       `gorm:"not null;default:0;check:loyalty_points >= 0" json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	User          User      `gorm:"foreignKey:UserID" json:"-"`
}

func (p *Profile) ToDomain() *profile.Profile {
	out := &profile.Profile{
		Email:         p.Email,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Phone:         p.Phone,
		Address:       p.Address,
		LoyaltyPoints: p.LoyaltyPoints,
	}
	if p.Location != nil && *p.Location != "" {
		loc := profile.Location(*p.Location)
		out.Location = &loc
	}
	return out
}
