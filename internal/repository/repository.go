package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/juju/loggo/v2"
	"go.mongodb.org/mongo-driver/mongo"

	"instafeed/internal/models"
)

var logger = loggo.GetLogger("instafeed.repository")

// AccountRepository is the identity side of the gateway.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *models.Account, password string) error
	GetAccountByID(ctx context.Context, accountID string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	VerifyPassword(ctx context.Context, email, password string) (*models.Account, error)
	UpdateRefreshToken(ctx context.Context, accountID, refreshToken string, expiryTime time.Time) error
	GetAccountByRefreshToken(ctx context.Context, refreshToken string) (*models.Account, error)
}

type ProfileRepository interface {
	GetByID(ctx context.Context, userID string) (*models.UserProfile, error)
	GetByHandle(ctx context.Context, handle string) (*models.UserProfile, error)
	Create(ctx context.Context, profile *models.UserProfile) error
	// Upsert sets the given fields, creating the profile if it is absent.
	Upsert(ctx context.Context, userID string, fields models.ProfileFields) error
	AddFollowing(ctx context.Context, userID, targetID string) error
	RemoveFollowing(ctx context.Context, userID, targetID string) error
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, postID string) (*models.Post, error)
	GetByAuthorID(ctx context.Context, authorID string) ([]*models.Post, error)
	// GetByAuthorIDs runs one membership query; callers chunk authorIDs.
	GetByAuthorIDs(ctx context.Context, authorIDs []string) ([]*models.Post, error)
	// GetCreatedAfter returns posts with createdAt strictly after since.
	GetCreatedAfter(ctx context.Context, since int64) ([]*models.Post, error)
	SearchByToken(ctx context.Context, token string) ([]*models.Post, error)
	UpdateAuthorImage(ctx context.Context, authorID, imageURL string) (int64, error)
	AddLiker(ctx context.Context, postID, userID string) error
	RemoveLiker(ctx context.Context, postID, userID string) error
	AddComment(ctx context.Context, postID, commentID string) error
}

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByPostID(ctx context.Context, postID string) ([]*models.Comment, error)
	Delete(ctx context.Context, commentID string) error
}

type Repository struct {
	Account AccountRepository
	Profile ProfileRepository
	Post    PostRepository
	Comment CommentRepository
}

func NewRepository(db *sqlx.DB, docs *mongo.Database) *Repository {
	return &Repository{
		Account: NewAccountRepository(db),
		Profile: NewProfileRepository(docs),
		Post:    NewPostRepository(docs),
		Comment: NewCommentRepository(docs),
	}
}
