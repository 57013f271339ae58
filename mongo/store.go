package mongo

import (
	"context"
	"time"

	"github.com/troydota/api.collections.komodohype.dev/errs"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) users() *mongo.Collection       { return s.Database.Collection(CollectionUsers) }
func (s *Store) collections() *mongo.Collection { return s.Database.Collection(CollectionCollections) }
func (s *Store) polls() *mongo.Collection       { return s.Database.Collection(CollectionPolls) }
func (s *Store) choices() *mongo.Collection     { return s.Database.Collection(CollectionChoices) }

func findErr(op string, err error) error {
	if err == mongo.ErrNoDocuments {
		return errs.ErrNotFound
	}
	return errs.Unavailable(op, err)
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.users().InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrDuplicateEmail
	}
	if err != nil {
		return errs.Unavailable("insert user", err)
	}
	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	if err := s.users().FindOne(ctx, bson.M{"email": email}).Decode(user); err != nil {
		return nil, findErr("find user", err)
	}
	return user, nil
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user := &models.User{}
	if err := s.users().FindOne(ctx, bson.M{"_id": id}).Decode(user); err != nil {
		return nil, findErr("find user", err)
	}
	return user, nil
}

func (s *Store) InsertChoices(ctx context.Context, choices []models.Choice) error {
	if len(choices) == 0 {
		return nil
	}
	docs := make([]interface{}, len(choices))
	for i := range choices {
		docs[i] = choices[i]
	}
	if _, err := s.choices().InsertMany(ctx, docs); err != nil {
		return errs.Unavailable("insert choices", err)
	}
	return nil
}

func (s *Store) InsertPolls(ctx context.Context, polls []models.Poll) error {
	if len(polls) == 0 {
		return nil
	}
	docs := make([]interface{}, len(polls))
	for i := range polls {
		docs[i] = polls[i]
	}
	if _, err := s.polls().InsertMany(ctx, docs); err != nil {
		return errs.Unavailable("insert polls", err)
	}
	return nil
}

func (s *Store) InsertCollection(ctx context.Context, collection *models.Collection) error {
	if _, err := s.collections().InsertOne(ctx, collection); err != nil {
		return errs.Unavailable("insert collection", err)
	}
	return nil
}

func (s *Store) DeleteChoices(ctx context.Context, ids []primitive.ObjectID) error {
	if _, err := s.choices().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return errs.Unavailable("delete choices", err)
	}
	return nil
}

func (s *Store) DeletePolls(ctx context.Context, ids []primitive.ObjectID) error {
	if _, err := s.polls().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return errs.Unavailable("delete polls", err)
	}
	return nil
}

func (s *Store) ListCollections(ctx context.Context, limit int) ([]models.CollectionSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "creationDate", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"polls": 0, "comments": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collections().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errs.Unavailable("list collections", err)
	}
	defer cursor.Close(ctx)

	result := []models.CollectionSummary{}
	if err = cursor.All(ctx, &result); err != nil {
		return nil, errs.Unavailable("list collections", err)
	}
	return result, nil
}

func (s *Store) FindCollection(ctx context.Context, id primitive.ObjectID) (*models.Collection, error) {
	collection := &models.Collection{}
	if err := s.collections().FindOne(ctx, bson.M{"_id": id}).Decode(collection); err != nil {
		return nil, findErr("find collection", err)
	}
	return collection, nil
}

func (s *Store) FindPollSummaries(ctx context.Context, ids []primitive.ObjectID) ([]models.PollSummary, error) {
	result := []models.PollSummary{}
	if len(ids) == 0 {
		return result, nil
	}

	opts := options.Find().SetProjection(bson.M{"choices": 0, "lastVote": 0})
	cursor, err := s.polls().Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, errs.Unavailable("find polls", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &result); err != nil {
		return nil, errs.Unavailable("find polls", err)
	}
	return result, nil
}

func (s *Store) FindPoll(ctx context.Context, id primitive.ObjectID) (*models.Poll, error) {
	poll := &models.Poll{}
	if err := s.polls().FindOne(ctx, bson.M{"_id": id}).Decode(poll); err != nil {
		return nil, findErr("find poll", err)
	}
	return poll, nil
}

// FindChoiceViews counts votes inside the database so vote records never
// leave it.
func (s *Store) FindChoiceViews(ctx context.Context, ids []primitive.ObjectID) ([]models.ChoiceView, error) {
	result := []models.ChoiceView{}
	if len(ids) == 0 {
		return result, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": ids}}}},
		{{Key: "$project", Value: bson.M{
			"name":      1,
			"voteCount": bson.M{"$size": bson.M{"$ifNull": bson.A{"$votes", bson.A{}}}},
		}}},
	}
	cursor, err := s.choices().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errs.Unavailable("find choices", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &result); err != nil {
		return nil, errs.Unavailable("find choices", err)
	}
	return result, nil
}

// ClaimVote is a single conditional update: the filter only matches while
// the user is eligible, so of several concurrent claims exactly one wins.
func (s *Store) ClaimVote(ctx context.Context, pollID, choiceID, userID primitive.ObjectID, now, cutoff time.Time) (*time.Time, error) {
	key := lastVoteKey(userID.Hex())
	filter := bson.M{
		"_id":     pollID,
		"choices": choiceID,
		"$or": bson.A{
			bson.M{key: bson.M{"$exists": false}},
			bson.M{key: bson.M{"$lt": cutoff}},
		},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{key: 1})

	before := &models.Poll{}
	err := s.polls().FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{key: now}}, opts).Decode(before)
	if err == mongo.ErrNoDocuments {
		n, err := s.polls().CountDocuments(ctx, bson.M{"_id": pollID, "choices": choiceID})
		if err != nil {
			return nil, errs.Unavailable("claim vote", err)
		}
		if n == 0 {
			return nil, errs.ErrNotFound
		}
		return nil, errs.ErrNotEligible
	}
	if err != nil {
		return nil, errs.Unavailable("claim vote", err)
	}

	if prev, ok := before.LastVote[userID.Hex()]; ok {
		return &prev, nil
	}
	return nil, nil
}

func (s *Store) PushVote(ctx context.Context, choiceID primitive.ObjectID, vote models.Vote) error {
	res, err := s.choices().UpdateOne(ctx, bson.M{"_id": choiceID}, bson.M{"$push": bson.M{"votes": vote}})
	if err != nil {
		return errs.Unavailable("push vote", err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) ReleaseVote(ctx context.Context, pollID, userID primitive.ObjectID, claimed time.Time, previous *time.Time) error {
	key := lastVoteKey(userID.Hex())

	update := bson.M{"$unset": bson.M{key: ""}}
	if previous != nil {
		update = bson.M{"$set": bson.M{key: *previous}}
	}

	if _, err := s.polls().UpdateOne(ctx, bson.M{"_id": pollID, key: claimed}, update); err != nil {
		return errs.Unavailable("release vote", err)
	}
	return nil
}
