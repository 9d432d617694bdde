package users

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-identity-service/internal/errors"
	"github.com/jrsteele09/go-identity-service/internal/utils"
)

// ProfileService reads and edits the public profile of a user.
type ProfileService struct {
	repo UserRepo
}

// NewProfileService creates a ProfileService backed by repo.
func NewProfileService(repo UserRepo) (*ProfileService, error) {
	if repo == nil {
		return nil, fmt.Errorf("[NewProfileService] user repo is required")
	}
	return &ProfileService{repo: repo}, nil
}

// GetProfile returns the public view of the user, or ErrNotFound.
func (ps *ProfileService) GetProfile(ctx context.Context, id int64) (Profile, error) {
	user, err := ps.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, apperrors.Wrapf(err, "[ProfileService.GetProfile] FindByID")
	}
	return user.Profile(), nil
}

// UpdateProfile renames the user and returns the stored result.
// It returns ErrConflict when the username belongs to someone else.
func (ps *ProfileService) UpdateProfile(ctx context.Context, id int64, username string) (Profile, error) {
	if err := ps.repo.Update(ctx, id, UserUpdate{Username: utils.Ptr(username)}); err != nil {
		return Profile{}, apperrors.Wrapf(err, "[ProfileService.UpdateProfile] Update")
	}
	return ps.GetProfile(ctx, id)
}
