package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SessionsCollection = "interview_sessions"

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) repositories.SessionRepository {
	return &sessionRepo{col: db.Collection(SessionsCollection)}
}

func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Put inserts at version 0 and otherwise replaces the document only when the
// stored version still matches.
func (r *sessionRepo) Put(ctx context.Context, s *models.InterviewSession) error {
	doc := *s
	doc.Version = s.Version + 1

	if s.Version == 0 {
		res, err := r.col.InsertOne(ctx, &doc)
		if mongo.IsDuplicateKeyError(err) {
			return utils.ErrConflict
		}
		if err != nil {
			return err
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			s.ID = id
		}
		s.Version = doc.Version
		return nil
	}

	res, err := r.col.ReplaceOne(ctx,
		bson.M{"session_id": s.SessionID, "version": s.Version},
		&doc,
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"session_id": s.SessionID})
		if err != nil {
			return err
		}
		if n == 0 {
			return utils.ErrNotFound
		}
		return utils.ErrConflict
	}
	s.Version = doc.Version
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) ListAwaitingAnalysis(ctx context.Context, limit int) ([]*models.InterviewSession, error) {
	return r.find(ctx, bson.M{
		"phase":             models.PhaseCompleted,
		"analysis_enqueued": bson.M{"$ne": true},
	}, limit)
}

func (r *sessionRepo) ListUpdatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.InterviewSession, error) {
	return r.find(ctx, bson.M{"updated_at": bson.M{"$lt": cutoff.UTC()}}, limit)
}

func (r *sessionRepo) find(ctx context.Context, filter bson.M, limit int) ([]*models.InterviewSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*models.InterviewSession, 0)
	for cur.Next(ctx) {
		var s models.InterviewSession
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}
