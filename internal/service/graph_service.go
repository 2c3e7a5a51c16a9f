package service

import (
	"context"
	"strings"

	"github.com/juju/errors"

	"instafeed/internal/apperr"
	"instafeed/internal/events"
	"instafeed/internal/models"
	"instafeed/internal/repository"
)

type FollowResult struct {
	Profile   *models.UserProfile `json:"profile"`
	Following bool                `json:"following"`
}

type GraphService interface {
	// ToggleFollow follows targetID if the session user does not follow
	// it yet, and unfollows it otherwise.
	ToggleFollow(ctx context.Context, targetID string) (*FollowResult, error)
}

type graphService struct {
	profileRepo repository.ProfileRepository
	hub         events.Publisher
}

func NewGraphService(profileRepo repository.ProfileRepository, hub events.Publisher) GraphService {
	return &graphService{profileRepo: profileRepo, hub: hub}
}

func (g *graphService) ToggleFollow(ctx context.Context, targetID string) (*FollowResult, error) {
	userID, err := sessionUser(ctx)
	if err != nil {
		return nil, err
	}

	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if targetID == userID {
		return nil, apperr.Validation("you can not follow yourself")
	}

	target, err := g.profileRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, errors.Annotate(err, "loading followed user")
	}

	profile, err := g.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Annotate(err, "loading profile")
	}

	_, following := models.ToggleID(profile.FollowingIDs, targetID)
	if following {
		err = g.profileRepo.AddFollowing(ctx, userID, targetID)
	} else {
		err = g.profileRepo.RemoveFollowing(ctx, userID, targetID)
	}
	if err != nil {
		return nil, errors.Annotate(err, "updating following")
	}

	updated, err := g.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if following {
		g.hub.Notify(userID, "Following "+target.AuthorName())
	} else {
		g.hub.Notify(userID, "Unfollowed "+target.AuthorName())
	}

	return &FollowResult{Profile: updated, Following: following}, nil
}
