// Package profile defines the profile record exchanged with the Profile
// Service and the editable subset of it used as a form draft.
package profile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingEmail        = errors.New("profile email is required")
	ErrNegativePoints      = errors.New("loyalty points must not be negative")
	ErrUnsupportedLocation = errors.New("unsupported location")
)

// Location is a named region used as the preferred origin for flight searches.
type Location string

const AllIndia Location = "All India"

// Locations lists every supported region in display order.
var Locations = []Location{
	AllIndia,
	"Mumbai",
	"Delhi",
	"Bangalore",
	"Hyderabad",
	"Chennai",
	"Kolkata",
	"Pune",
	"Ahmedabad",
	"Jaipur",
}

func (l Location) Valid() bool {
	for _, loc := range Locations {
		if loc == l {
			return true
		}
	}
	return false
}

func (l Location) String() string { return string(l) }

// ParseLocation returns the Location named by s.
func ParseLocation(s string) (Location, error) {
	loc := Location(strings.TrimSpace(s))
	if !loc.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLocation, s)
	}
	return loc, nil
}

// Profile is the server-owned record of a user's personal and preference data.
// Optional string fields are empty when unset; Location is nil when the user
// never chose one.
type Profile struct {
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName,omitempty"`
	LastName      string    `json:"lastName,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	Location      *Location `json:"location,omitempty"`
	LoyaltyPoints int       `json:"loyaltyPoints"`
}

// Validate checks the invariants a decoded profile must hold.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Email) == "" {
		return ErrMissingEmail
	}
	if p.LoyaltyPoints < 0 {
		return ErrNegativePoints
	}
	if p.Location != nil && *p.Location != "" && !p.Location.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedLocation, string(*p.Location))
	}
	return nil
}

// Fields returns the editable subset of p. fallback is used when p carries no
// location.
func (p *Profile) Fields(fallback Location) Fields {
	loc := fallback
	if p.Location != nil && *p.Location != "" {
		loc = *p.Location
	}
	return Fields{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Address:   p.Address,
		Location:  loc,
	}
}

// Fields is the editable part of a Profile. It doubles as the form draft and
// as the body of an update request.
type Fields struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Phone     string   `json:"phone"`
	Address   string   `json:"address"`
	Location  Location `json:"location"`
}

func DefaultFields() Fields {
	return Fields{Location: AllIndia}
}

// UpdateResult reports the outcome of an update. Business-rule failures come
// back as Success false with an optional human-readable Message.
type UpdateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Initials derives the two-letter avatar badge from a first and last name.
func Initials(firstName, lastName string) string {
	return firstRune(firstName, "L") + firstRune(lastName, "R")
}

func firstRune(s, fallback string) string {
	for _, r := range s {
		return string(r)
	}
	return fallback
}
