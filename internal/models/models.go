package models

import (
	"time"

	"github.com/juju/collections/set"
)

// Account is the identity record kept in Postgres.
type Account struct {
	AccountID              string    `json:"accountId" db:"account_id"`
	Email                  string    `json:"email" db:"email"`
	PasswordHash           string    `json:"-" db:"password_hash"`
	RefreshToken           string    `json:"-" db:"refresh_token"`
	RefreshTokenExpiryTime time.Time `json:"-" db:"refresh_token_expiry_time"`
	CreatedAt              time.Time `json:"createdAt" db:"created_at"`
}

// UserProfile is keyed by the account id.
type UserProfile struct {
	UserID       string   `json:"userId" bson:"_id"`
	DisplayName  string   `json:"displayName" bson:"displayName"`
	Handle       string   `json:"handle" bson:"handle"`
	Bio          string   `json:"bio" bson:"bio"`
	ImageURL     string   `json:"imageUrl" bson:"imageUrl"`
	FollowingIDs []string `json:"followingIds" bson:"followingIds"`
}

// AuthorName is the name shown next to the user's posts and comments.
func (p *UserProfile) AuthorName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Handle
}

// ProfileFields is a partial profile update; nil fields are left alone.
type ProfileFields struct {
	DisplayName *string `json:"displayName"`
	Handle      *string `json:"handle"`
	Bio         *string `json:"bio"`
	ImageURL    *string `json:"imageUrl"`
}

func (f ProfileFields) IsEmpty() bool {
	return f.DisplayName == nil && f.Handle == nil && f.Bio == nil && f.ImageURL == nil
}

type Post struct {
	PostID         string   `json:"postId" bson:"_id"`
	AuthorID       string   `json:"authorId" bson:"authorId"`
	AuthorName     string   `json:"authorName" bson:"authorName"`
	AuthorImageURL string   `json:"authorImageUrl" bson:"authorImageUrl"`
	ImageURL       string   `json:"imageUrl" bson:"imageUrl"`
	Description    string   `json:"description" bson:"description"`
	CreatedAt      int64    `json:"createdAt" bson:"createdAt"`
	LikerIDs       []string `json:"likerIds" bson:"likerIds"`
	CommentIDs     []string `json:"commentIds" bson:"commentIds"`
	SearchTokens   []string `json:"searchTokens" bson:"searchTokens"`
}

func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.LikerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Comment struct {
	CommentID  string `json:"commentId" bson:"_id"`
	PostID     string `json:"postId" bson:"postId"`
	AuthorID   string `json:"authorId" bson:"authorId"`
	AuthorName string `json:"authorName" bson:"authorName"`
	Text       string `json:"text" bson:"text"`
	CreatedAt  int64  `json:"createdAt" bson:"createdAt"`
}

type FeedSource string

const (
	FeedPersonalized FeedSource = "personalized"
	FeedGeneral      FeedSource = "general"
)

// Feed is derived on demand and never stored.
type Feed struct {
	UserID     string     `json:"userId"`
	Source     FeedSource `json:"source"`
	Posts      []*Post    `json:"posts"`
	ComposedAt time.Time  `json:"composedAt"`
}

// Session is what sign-up, log-in and token refresh hand back.
type Session struct {
	Profile      *UserProfile `json:"profile"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// ToggleID returns ids with id removed if present, or appended otherwise,
// and whether id is present in the result. Order of the other ids is kept.
// Applying it twice to the same snapshot yields the original set.
func ToggleID(ids []string, id string) ([]string, bool) {
	current := set.NewStrings(ids...)
	result := make([]string, 0, len(ids)+1)

	if current.Contains(id) {
		for _, existing := range ids {
			if existing != id {
				result = append(result, existing)
			}
		}
		return result, false
	}

	result = append(result, ids...)
	return append(result, id), true
}
