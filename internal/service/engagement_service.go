package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"instafeed/internal/apperr"
	"instafeed/internal/events"
	"instafeed/internal/models"
	"instafeed/internal/repository"
)

type EngagementService interface {
	AddComment(ctx context.Context, postID, text string) (*models.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*models.Comment, error)
	ToggleLike(ctx context.Context, postID string) (*models.Post, error)
}

type engagementService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	profileRepo repository.ProfileRepository
	hub         events.Publisher
	clock       clock.Clock
}

func NewEngagementService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	profileRepo repository.ProfileRepository,
	hub events.Publisher,
	clk clock.Clock,
) EngagementService {
	return &engagementService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		profileRepo: profileRepo,
		hub:         hub,
		clock:       clk,
	}
}

func (e *engagementService) AddComment(ctx context.Context, postID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("comment can not be empty")
	}

	userID, err := sessionUser(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := e.postRepo.GetByID(ctx, postID); err != nil {
		return nil, errors.Annotate(err, "loading post")
	}

	author, err := e.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Annotate(err, "loading author")
	}

	comment := &models.Comment{
		CommentID:  uuid.New().String(),
		PostID:     postID,
		AuthorID:   userID,
		AuthorName: author.AuthorName(),
		Text:       text,
		CreatedAt:  e.clock.Now().UnixMilli(),
	}

	if err := e.commentRepo.Create(ctx, comment); err != nil {
		return nil, errors.Annotate(err, "creating comment")
	}

	if err := e.postRepo.AddComment(ctx, postID, comment.CommentID); err != nil {
		if delErr := e.commentRepo.Delete(ctx, comment.CommentID); delErr != nil {
			logger.Errorf("comment %s is not linked to post %s: %v", comment.CommentID, postID, delErr)
		}
		return nil, errors.Annotate(err, "linking comment to post")
	}

	e.hub.Notify(userID, "Comment added")
	return comment, nil
}

func (e *engagementService) ListComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	if isBlank(postID) {
		return nil, apperr.Validation("post id is required")
	}
	return e.commentRepo.GetByPostID(ctx, postID)
}

// ToggleLike flips the session user's like using a field-level set
// operation, so likes by other users are never overwritten.
func (e *engagementService) ToggleLike(ctx context.Context, postID string) (*models.Post, error) {
	userID, err := sessionUser(ctx)
	if err != nil {
		return nil, err
	}
	if isBlank(postID) {
		return nil, apperr.Validation("post id is required")
	}

	post, err := e.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, errors.Annotate(err, "loading post")
	}

	if post.LikedBy(userID) {
		err = e.postRepo.RemoveLiker(ctx, postID, userID)
	} else {
		err = e.postRepo.AddLiker(ctx, postID, userID)
	}
	if err != nil {
		return nil, errors.Annotate(err, "toggling like")
	}

	return e.postRepo.GetByID(ctx, postID)
}
