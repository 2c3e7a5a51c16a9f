package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"instafeed/internal/apperr"
	"instafeed/internal/database"
	"instafeed/internal/models"
)

type PostRepositoryImpl struct {
	coll *mongo.Collection
}

func NewPostRepository(db *mongo.Database) *PostRepositoryImpl {
	return &PostRepositoryImpl{coll: db.Collection(database.PostsCollection)}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

func (r *PostRepositoryImpl) find(ctx context.Context, filter bson.M, what string) ([]*models.Post, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, apperr.Gateway(err, "fetching %s", what)
	}
	defer cursor.Close(ctx)

	posts := []*models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, apperr.Gateway(err, "decoding %s", what)
	}

	return posts, nil
}

func (r *PostRepositoryImpl) Create(ctx context.Context, post *models.Post) error {
	if post.LikerIDs == nil {
		post.LikerIDs = []string{}
	}
	if post.CommentIDs == nil {
		post.CommentIDs = []string{}
	}
	if post.SearchTokens == nil {
		post.SearchTokens = []string{}
	}

	_, err := r.coll.InsertOne(ctx, post)
	if err != nil {
		return apperr.Gateway(err, "creating post")
	}

	return nil
}

func (r *PostRepositoryImpl) GetByID(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post

	err := r.coll.FindOne(ctx, bson.M{"_id": postID}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("post %s not found", postID)
		}
		return nil, apperr.Gateway(err, "getting post")
	}

	return &post, nil
}

func (r *PostRepositoryImpl) GetByAuthorID(ctx context.Context, authorID string) ([]*models.Post, error) {
	return r.find(ctx, bson.M{"authorId": authorID}, "posts")
}

func (r *PostRepositoryImpl) GetByAuthorIDs(ctx context.Context, authorIDs []string) ([]*models.Post, error) {
	if len(authorIDs) == 0 {
		return []*models.Post{}, nil
	}
	return r.find(ctx, bson.M{"authorId": bson.M{"$in": authorIDs}}, "followed posts")
}

func (r *PostRepositoryImpl) GetCreatedAfter(ctx context.Context, since int64) ([]*models.Post, error) {
	return r.find(ctx, bson.M{"createdAt": bson.M{"$gt": since}}, "recent posts")
}

func (r *PostRepositoryImpl) SearchByToken(ctx context.Context, token string) ([]*models.Post, error) {
	return r.find(ctx, bson.M{"searchTokens": token}, "search results")
}

// UpdateAuthorImage rewrites the cached author image on every post of
// authorID in one multi-document update.
func (r *PostRepositoryImpl) UpdateAuthorImage(ctx context.Context, authorID, imageURL string) (int64, error) {
	result, err := r.coll.UpdateMany(ctx,
		bson.M{"authorId": authorID},
		bson.M{"$set": bson.M{"authorImageUrl": imageURL}},
	)
	if err != nil {
		return 0, apperr.Gateway(err, "updating author image on posts")
	}

	return result.ModifiedCount, nil
}

func (r *PostRepositoryImpl) updatePost(ctx context.Context, postID string, update bson.M) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": postID}, update)
	if err != nil {
		return apperr.Gateway(err, "updating post")
	}

	if result.MatchedCount == 0 {
		return apperr.NotFound("post %s not found", postID)
	}

	return nil
}

func (r *PostRepositoryImpl) AddLiker(ctx context.Context, postID, userID string) error {
	return r.updatePost(ctx, postID, bson.M{"$addToSet": bson.M{"likerIds": userID}})
}

func (r *PostRepositoryImpl) RemoveLiker(ctx context.Context, postID, userID string) error {
	return r.updatePost(ctx, postID, bson.M{"$pull": bson.M{"likerIds": userID}})
}

func (r *PostRepositoryImpl) AddComment(ctx context.Context, postID, commentID string) error {
	return r.updatePost(ctx, postID, bson.M{"$addToSet": bson.M{"commentIds": commentID}})
}
