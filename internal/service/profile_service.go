package service

import (
	"bytes"
	"context"
	"strings"

	"github.com/juju/errors"

	"instafeed/internal/apperr"
	"instafeed/internal/config"
	"instafeed/internal/events"
	"instafeed/internal/models"
	"instafeed/internal/repository"
	"instafeed/internal/storage"
)

type ProfileService interface {
	CurrentProfile(ctx context.Context) (*models.UserProfile, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, fields models.ProfileFields) (*models.UserProfile, error)
	UploadProfileImage(ctx context.Context, fileName string, image []byte) (*models.UserProfile, error)
}

type profileService struct {
	profileRepo repository.ProfileRepository
	postRepo    repository.PostRepository
	storage     storage.Storage
	hub         events.Publisher
	cfg         *config.Config
}

func NewProfileService(
	profileRepo repository.ProfileRepository,
	postRepo repository.PostRepository,
	storage storage.Storage,
	hub events.Publisher,
	cfg *config.Config,
) ProfileService {
	return &profileService{
		profileRepo: profileRepo,
		postRepo:    postRepo,
		storage:     storage,
		hub:         hub,
		cfg:         cfg,
	}
}

func (s *profileService) CurrentProfile(ctx context.Context) (*models.UserProfile, error) {
	userID, err := sessionUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.profileRepo.GetByID(ctx, userID)
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if isBlank(userID) {
		return nil, apperr.Validation("user id is required")
	}
	return s.profileRepo.GetByID(ctx, userID)
}

// UpdateProfile writes only the provided fields. A new image url is pushed
// to every post the user has written.
func (s *profileService) UpdateProfile(ctx context.Context, fields models.ProfileFields) (*models.UserProfile, error) {
	userID, err := sessionUser(ctx)
	if err != nil {
		return nil, err
	}
	if fields.Handle != nil {
		handle := strings.TrimSpace(*fields.Handle)
		if handle == "" {
			return nil, apperr.Validation("username can not be empty")
		}
		owner, err := s.profileRepo.GetByHandle(ctx, handle)
		switch {
		case err == nil && owner.UserID != userID:
			return nil, apperr.Conflict("username %s already exists", handle)
		case err != nil && !apperr.IsNotFound(err):
			return nil, errors.Annotate(err, "checking username")
		}
		fields.Handle = &handle
	}

	var oldImageURL string
	if fields.ImageURL != nil {
		current, err := s.profileRepo.GetByID(ctx, userID)
		if err != nil && !apperr.IsNotFound(err) {
			return nil, errors.Annotate(err, "loading profile")
		}
		if current != nil {
			oldImageURL = current.ImageURL
		}
	}

	if err := s.profileRepo.Upsert(ctx, userID, fields); err != nil {
		return nil, errors.Annotate(err, "updating profile")
	}

	if fields.ImageURL != nil && *fields.ImageURL != oldImageURL {
		updated, err := s.postRepo.UpdateAuthorImage(ctx, userID, *fields.ImageURL)
		if err != nil {
			return nil, errors.Annotate(err, "updating author image on posts")
		}
		logger.Debugf("rewrote author image on %d posts of %s", updated, userID)
	}

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.hub.Notify(userID, "Profile updated successfully")
	return profile, nil
}

func (s *profileService) UploadProfileImage(ctx context.Context, fileName string, image []byte) (*models.UserProfile, error) {
	userID, err := sessionUser(ctx)
	if err != nil {
		return nil, err
	}

	contentType, err := checkImage(image, s.cfg.MaxUploadSize)
	if err != nil {
		return nil, err
	}

	objectName, url, err := s.storage.UploadImage(ctx, storage.ProfileImages, userID, fileName,
		bytes.NewReader(image), int64(len(image)), contentType)
	if err != nil {
		return nil, errors.Annotate(err, "uploading profile image")
	}

	profile, err := s.UpdateProfile(ctx, models.ProfileFields{ImageURL: &url})
	if err != nil {
		if delErr := s.storage.DeleteImage(ctx, objectName); delErr != nil {
			logger.Errorf("removing orphaned image %s: %v", objectName, delErr)
		}
		return nil, err
	}
	return profile, nil
}
