package profileclient

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/services"
)

// Local serves the view straight from the in-process ProfileService, for
// deployments where the portal and the users API are the same binary.
type Local struct {
	service *services.ProfileService
}

func NewLocal(service *services.ProfileService) *Local {
	return &Local{service: service}
}

func (l *Local) GetProfile(ctx context.Context, email string) (*profile.Profile, error) {
	p, err := l.service.GetProfile(ctx, email)
	if errors.Is(err, services.ErrProfileNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

func (l *Local) UpdateProfile(ctx context.Context, email string, fields profile.Fields) (*profile.UpdateResult, error) {
	return l.service.UpdateProfile(ctx, email, fields)
}
