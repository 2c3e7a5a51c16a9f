package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"instafeed/internal/apperr"
	"instafeed/internal/database"
	"instafeed/internal/models"
)

type CommentRepositoryImpl struct {
	coll *mongo.Collection
}

func NewCommentRepository(db *mongo.Database) *CommentRepositoryImpl {
	return &CommentRepositoryImpl{coll: db.Collection(database.CommentsCollection)}
}

func (r *CommentRepositoryImpl) Create(ctx context.Context, comment *models.Comment) error {
	_, err := r.coll.InsertOne(ctx, comment)
	if err != nil {
		return apperr.Gateway(err, "creating comment")
	}

	return nil
}

// GetByPostID returns the comments of a post, oldest first.
func (r *CommentRepositoryImpl) GetByPostID(ctx context.Context, postID string) ([]*models.Comment, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"postId": postID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, apperr.Gateway(err, "fetching comments")
	}
	defer cursor.Close(ctx)

	comments := []*models.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, apperr.Gateway(err, "decoding comments")
	}

	return comments, nil
}

func (r *CommentRepositoryImpl) Delete(ctx context.Context, commentID string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": commentID})
	if err != nil {
		return apperr.Gateway(err, "deleting comment")
	}

	if result.DeletedCount == 0 {
		logger.Debugf("comment %s already gone", commentID)
	}

	return nil
}
