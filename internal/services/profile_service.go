package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/models"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("profile not found")

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,18}[0-9]$`)

const (
	maxNameLength    = 100
	maxAddressLength = 255
)

// ProfileService owns the profile records behind the users API.
type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

func (s *ProfileService) GetProfile(ctx context.Context, email string) (*profile.Profile, error) {
	var row models.Profile
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return row.ToDomain(), nil
}

// UpdateProfile writes the editable fields. Validation failures and a missing
// profile are reported in the result, not as errors.
func (s *ProfileService) UpdateProfile(ctx context.Context, email string, fields profile.Fields) (*profile.UpdateResult, error) {
	fields = trimFields(fields)
	if msg := validateFields(fields); msg != "" {
		return &profile.UpdateResult{Success: false, Message: msg}, nil
	}

	loc := string(fields.Location)
	result := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("email = ?", normalizeEmail(email)).
		Updates(map[string]interface{}{
			"first_name": fields.FirstName,
			"last_name":  fields.LastName,
			"phone":      fields.Phone,
			"address":    fields.Address,
			"location":   loc,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &profile.UpdateResult{Success: false, Message: "Profile not found"}, nil
	}
	return &profile.UpdateResult{Success: true, Message: "Profile updated"}, nil
}

func createProfile(tx *gorm.DB, user *models.User) error {
	row := models.Profile{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func trimFields(f profile.Fields) profile.Fields {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	return f
}

// validateFields returns a user-facing message for the first rule f breaks,
// or "" when f is acceptable.
func validateFields(f profile.Fields) string {
	switch {
	case utf8.RuneCountInString(f.FirstName) > maxNameLength:
		return "First name is too long"
	case utf8.RuneCountInString(f.LastName) > maxNameLength:
		return "Last name is too long"
	case f.Phone != "" && !phonePattern.MatchString(f.Phone):
		return "Phone number is invalid"
	case utf8.RuneCountInString(f.Address) > maxAddressLength:
		return "Address is too long"
	case !f.Location.Valid():
		return "Location is not supported"
	}
	return ""
}
