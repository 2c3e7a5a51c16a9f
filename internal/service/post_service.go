package service

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"instafeed/internal/apperr"
	"instafeed/internal/config"
	"instafeed/internal/events"
	"instafeed/internal/models"
	"instafeed/internal/repository"
	"instafeed/internal/search"
	"instafeed/internal/storage"
)

type CreatePostRequest struct {
	FileName    string
	Image       []byte
	Description string
}

type PostService interface {
	CreatePost(ctx context.Context, req CreatePostRequest) (*models.Post, error)
	FetchOwnPosts(ctx context.Context) ([]*models.Post, error)
	FetchUserPosts(ctx context.Context, userID string) ([]*models.Post, error)
	SearchPosts(ctx context.Context, term string) ([]*models.Post, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
}

type postService struct {
	postRepo    repository.PostRepository
	profileRepo repository.ProfileRepository
	storage     storage.Storage
	hub         events.Publisher
	clock       clock.Clock
	cfg         *config.Config
}

func NewPostService(
	postRepo repository.PostRepository,
	profileRepo repository.ProfileRepository,
	storage storage.Storage,
	hub events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
) PostService {
	return &postService{
		postRepo:    postRepo,
		profileRepo: profileRepo,
		storage:     storage,
		hub:         hub,
		clock:       clk,
		cfg:         cfg,
	}
}

func (p *postService) CreatePost(ctx context.Context, req CreatePostRequest) (*models.Post, error) {
	userID, err := sessionUser(ctx)
	if err != nil {
		return nil, err
	}

	contentType, err := checkImage(req.Image, p.cfg.MaxUploadSize)
	if err != nil {
		return nil, err
	}

	author, err := p.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Annotate(err, "loading author")
	}

	objectName, url, err := p.storage.UploadImage(ctx, storage.PostImages, userID, req.FileName,
		bytes.NewReader(req.Image), int64(len(req.Image)), contentType)
	if err != nil {
		return nil, errors.Annotate(err, "uploading post image")
	}

	post := &models.Post{
		PostID:         uuid.New().String(),
		AuthorID:       userID,
		AuthorName:     author.Handle,
		AuthorImageURL: author.ImageURL,
		ImageURL:       url,
		Description:    req.Description,
		CreatedAt:      p.clock.Now().UnixMilli(),
		LikerIDs:       []string{},
		CommentIDs:     []string{},
		SearchTokens:   search.Tokens(req.Description),
	}

	if err := p.postRepo.Create(ctx, post); err != nil {
		if delErr := p.storage.DeleteImage(ctx, objectName); delErr != nil {
			logger.Errorf("removing orphaned image %s: %v", objectName, delErr)
		}
		return nil, errors.Annotate(err, "error creating post")
	}

	logger.Infof("post %s created by %s", post.PostID, userID)
	p.hub.Notify(userID, "Post uploaded successfully")
	return post, nil
}

func (p *postService) FetchOwnPosts(ctx context.Context) ([]*models.Post, error) {
	userID, err := sessionUser(ctx)
	if err != nil {
		return nil, err
	}
	return p.FetchUserPosts(ctx, userID)
}

func (p *postService) FetchUserPosts(ctx context.Context, userID string) ([]*models.Post, error) {
	if isBlank(userID) {
		return nil, apperr.Validation("user id is required")
	}

	posts, err := p.postRepo.GetByAuthorID(ctx, userID)
	if err != nil {
		return nil, errors.Annotatef(err, "fetching posts of %s", userID)
	}

	sortNewestFirst(posts)
	return posts, nil
}

// SearchPosts matches a single normalized term against post search tokens.
func (p *postService) SearchPosts(ctx context.Context, term string) ([]*models.Post, error) {
	term = search.NormalizeTerm(term)
	if term == "" || search.IsStopWord(term) {
		return []*models.Post{}, nil
	}

	posts, err := p.postRepo.SearchByToken(ctx, term)
	if err != nil {
		return nil, errors.Annotatef(err, "searching %q", term)
	}

	sortNewestFirst(posts)
	return posts, nil
}

func (p *postService) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, apperr.Validation("post id is required")
	}
	return p.postRepo.GetByID(ctx, postID)
}

// sortNewestFirst orders posts by createdAt descending. Ties keep their
// incoming order.
func sortNewestFirst(posts []*models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt > posts[j].CreatedAt
	})
}
