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

type ProfileRepositoryImpl struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepositoryImpl {
	return &ProfileRepositoryImpl{coll: db.Collection(database.ProfilesCollection)}
}

func (r *ProfileRepositoryImpl) findOne(ctx context.Context, filter bson.M, what string) (*models.UserProfile, error) {
	var profile models.UserProfile

	err := r.coll.FindOne(ctx, filter).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("profile %s not found", what)
		}
		return nil, apperr.Gateway(err, "getting profile")
	}

	if profile.FollowingIDs == nil {
		profile.FollowingIDs = []string{}
	}

	return &profile, nil
}

func (r *ProfileRepositoryImpl) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	return r.findOne(ctx, bson.M{"_id": userID}, userID)
}

func (r *ProfileRepositoryImpl) GetByHandle(ctx context.Context, handle string) (*models.UserProfile, error) {
	return r.findOne(ctx, bson.M{"handle": handle}, "@"+handle)
}

func (r *ProfileRepositoryImpl) Create(ctx context.Context, profile *models.UserProfile) error {
	if profile.FollowingIDs == nil {
		profile.FollowingIDs = []string{}
	}

	_, err := r.coll.InsertOne(ctx, profile)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("username %s already exists", profile.Handle)
		}
		return apperr.Gateway(err, "creating profile")
	}

	return nil
}

func profileSet(fields models.ProfileFields) bson.M {
	set := bson.M{}
	if fields.DisplayName != nil {
		set["displayName"] = *fields.DisplayName
	}
	if fields.Handle != nil {
		set["handle"] = *fields.Handle
	}
	if fields.Bio != nil {
		set["bio"] = *fields.Bio
	}
	if fields.ImageURL != nil {
		set["imageUrl"] = *fields.ImageURL
	}
	return set
}

// Upsert only touches the provided fields of an existing profile. A new
// profile starts with an empty following set.
func (r *ProfileRepositoryImpl) Upsert(ctx context.Context, userID string, fields models.ProfileFields) error {
	update := bson.M{
		"$setOnInsert": bson.M{"followingIds": []string{}},
	}
	if !fields.IsEmpty() {
		update["$set"] = profileSet(fields)
	}

	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("username already exists")
		}
		return apperr.Gateway(err, "updating profile")
	}

	return nil
}

func (r *ProfileRepositoryImpl) updateFollowing(ctx context.Context, userID string, update bson.M) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return apperr.Gateway(err, "updating following")
	}

	if result.MatchedCount == 0 {
		return apperr.NotFound("profile %s not found", userID)
	}

	return nil
}

func (r *ProfileRepositoryImpl) AddFollowing(ctx context.Context, userID, targetID string) error {
	return r.updateFollowing(ctx, userID, bson.M{"$addToSet": bson.M{"followingIds": targetID}})
}

func (r *ProfileRepositoryImpl) RemoveFollowing(ctx context.Context, userID, targetID string) error {
	return r.updateFollowing(ctx, userID, bson.M{"$pull": bson.M{"followingIds": targetID}})
}
