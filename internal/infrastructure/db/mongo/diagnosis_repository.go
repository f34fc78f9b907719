package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
)

const diagnosesCollection = "diagnoses"

// DiagnosisRepository is the diagnosis store.
type DiagnosisRepository struct {
	col *mongo.Collection
}

func NewDiagnosisRepository(db *mongo.Database) *DiagnosisRepository {
	return &DiagnosisRepository{col: db.Collection(diagnosesCollection)}
}

type mongoDiagnosis struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	User        primitive.ObjectID `bson:"user"`
	ImageURL    string             `bson:"image_url"`
	ImageKey    string             `bson:"image_key"`
	Symptoms    bson.M             `bson:"symptoms,omitempty"`
	Results     *domain.Results    `bson:"results,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	CompletedAt *time.Time         `bson:"completed_at,omitempty"`
}

func (md *mongoDiagnosis) toDomain() *domain.Diagnosis {
	d := &domain.Diagnosis{
		ID:        md.ID.Hex(),
		UserID:    md.User.Hex(),
		ImageURL:  md.ImageURL,
		ImageKey:  md.ImageKey,
		Results:   md.Results,
		CreatedAt: md.CreatedAt.UTC(),
	}
	if md.Symptoms != nil {
		d.Symptoms = domain.Symptoms(md.Symptoms)
	}
	return d
}

// Create inserts a diagnosis in the created state and assigns its ID.
func (r *DiagnosisRepository) Create(ctx context.Context, d *domain.Diagnosis) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	owner, err := primitive.ObjectIDFromHex(d.UserID)
	if err != nil {
		return domain.NewValidationError("invalid owner ID")
	}

	doc := mongoDiagnosis{
		ID:        primitive.NewObjectID(),
		User:      owner,
		ImageURL:  d.ImageURL,
		ImageKey:  d.ImageKey,
		CreatedAt: d.CreatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert diagnosis: %w: %w", domain.ErrStore, err)
	}

	d.ID = doc.ID.Hex()
	return nil
}

func (r *DiagnosisRepository) FindByID(ctx context.Context, id string) (*domain.Diagnosis, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrDiagnosisNotFound
	}

	var md mongoDiagnosis
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&md); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDiagnosisNotFound
		}
		return nil, fmt.Errorf("find diagnosis: %w: %w", domain.ErrStore, err)
	}
	return md.toDomain(), nil
}

// Complete sets symptoms and results in one conditional update. The filter
// only matches the owner's diagnosis while it still has no results, so a
// repeated or concurrent submission cannot overwrite a completed record.
func (r *DiagnosisRepository) Complete(ctx context.Context, id, userID string, symptoms domain.Symptoms, results *domain.Results) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrDiagnosisNotFound
	}
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrForbidden
	}

	filter := completeFilter(oid, owner)
	update := bson.M{
		"$set": bson.M{
			"symptoms":     bson.M(symptoms),
			"results":      results,
			"completed_at": time.Now().UTC(),
		},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("complete diagnosis: %w: %w", domain.ErrStore, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAlreadySubmitted
	}
	return nil
}

func completeFilter(id, owner primitive.ObjectID) bson.M {
	return bson.M{
		"_id":     id,
		"user":    owner,
		"results": bson.M{"$exists": false},
	}
}

// ListByUser returns the user's diagnoses, newest first. _id breaks ties
// between records created within the same millisecond.
func (r *DiagnosisRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Diagnosis, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []*domain.Diagnosis{}, nil
	}

	opts := options.Find().SetSort(historySort())
	cur, err := r.col.Find(ctx, bson.M{"user": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("list diagnoses: %w: %w", domain.ErrStore, err)
	}
	defer cur.Close(ctx)

	out := []*domain.Diagnosis{}
	for cur.Next(ctx) {
		var md mongoDiagnosis
		if err := cur.Decode(&md); err != nil {
			return nil, fmt.Errorf("decode diagnosis: %w: %w", domain.ErrStore, err)
		}
		out = append(out, md.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list diagnoses: %w: %w", domain.ErrStore, err)
	}
	return out, nil
}

func historySort() bson.D {
	return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
}

// EnsureIndexes creates the index backing the history query.
func (r *DiagnosisRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
