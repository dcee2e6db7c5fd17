package implementation

import (
	"context"
	"errors"
	"time"

	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoReadingRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoReadingRepository(coll *mongo.Collection) *MongoReadingRepository {
	return &MongoReadingRepository{coll: coll, now: time.Now}
}

// EnsureIndexes creates the ascending timestamp index used by range queries.
func (r *MongoReadingRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: 1}},
		Options: options.Index().SetName("timestamp_1"),
	})
	return irrmodels.NewStorageError("ensure indexes", err)
}

func (r *MongoReadingRepository) Create(ctx context.Context, in irrmodels.ReadingInput) (*irrmodels.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rd := irrmodels.NewReading(primitive.NewObjectID(), in, r.now())
	if _, err := r.coll.InsertOne(ctx, rd); err != nil {
		return nil, irrmodels.NewStorageError("insert", err)
	}
	return &rd, nil
}

func (r *MongoReadingRepository) FindAll(ctx context.Context) ([]irrmodels.Reading, error) {
	return r.find(ctx, "find all", bson.D{})
}

func (r *MongoReadingRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]irrmodels.Reading, error) {
	filter := bson.D{{Key: "timestamp", Value: bson.D{
		{Key: "$gte", Value: start.UTC()},
		{Key: "$lte", Value: end.UTC()},
	}}}
	return r.find(ctx, "find by date range", filter)
}

func (r *MongoReadingRepository) find(ctx context.Context, op string, filter bson.D) ([]irrmodels.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, irrmodels.NewStorageError(op, err)
	}
	readings := make([]irrmodels.Reading, 0)
	if err := cur.All(ctx, &readings); err != nil {
		return nil, irrmodels.NewStorageError(op, err)
	}
	return readings, nil
}

func (r *MongoReadingRepository) FindByID(ctx context.Context, id string) (*irrmodels.Reading, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rd irrmodels.Reading
	err = r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&rd)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, irrmodels.NewStorageError("find by id", err)
	}
	return &rd, nil
}

func (r *MongoReadingRepository) DeleteByID(ctx context.Context, id string) (*irrmodels.Reading, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rd irrmodels.Reading
	err = r.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&rd)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, irrmodels.NewStorageError("delete", err)
	}
	return &rd, nil
}

func (r *MongoReadingRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return irrmodels.NewStorageError("ping", r.coll.Database().Client().Ping(ctx, readpref.Primary()))
}
