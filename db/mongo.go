package db

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"socialgraph/models"
)

// casAttempts bounds the read-modify-write loop in MongoStore.Update before it
// gives up with ErrConflict.
const casAttempts = 8

// MongoStore persists entities in one collection per kind. Updates use an
// optimistic revision check so concurrent writers to the same document never
// lose each other's changes.
type MongoStore struct {
	Client      *mongo.Client
	collections map[models.Kind]*mongo.Collection
}

// Connect dials MongoDB and prepares the collections and indexes.
func Connect(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "ping mongodb")
	}

	dbh := client.Database(database)
	s := &MongoStore{
		Client: client,
		collections: map[models.Kind]*mongo.Collection{
			models.KindUser:    dbh.Collection("users"),
			models.KindPost:    dbh.Collection("posts"),
			models.KindComment: dbh.Collection("comments"),
		},
	}
	if err := s.createIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	byCreation := bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	indexes := map[models.Kind][]mongo.IndexModel{
		models.KindUser: {{Keys: byCreation}},
		models.KindPost: {
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: byCreation},
		},
		models.KindComment: {
			{Keys: bson.D{{Key: "post", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: byCreation},
		},
	}
	for kind, idx := range indexes {
		if _, err := s.collections[kind].Indexes().CreateMany(ctx, idx); err != nil {
			return errors.Wrapf(err, "create %s indexes", kind)
		}
	}
	return nil
}

func (s *MongoStore) collection(kind models.Kind) (*mongo.Collection, error) {
	c, ok := s.collections[kind]
	if !ok {
		return nil, errors.Errorf("db: unknown kind %q", kind)
	}
	return c, nil
}

func (s *MongoStore) Get(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	e, err := models.New(kind)
	if err != nil {
		return nil, err
	}
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(e)
	if err == mongo.ErrNoDocuments {
		return nil, errors.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s %s", kind, id)
	}
	return e, nil
}

func (s *MongoStore) Put(ctx context.Context, e models.Entity) error {
	coll, err := s.collection(e.EntityKind())
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return errors.Wrapf(err, "put %s %s", e.EntityKind(), e.EntityID())
}

func (s *MongoStore) Find(ctx context.Context, kind models.Kind, f Filter) ([]models.Entity, error) {
	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	query := bson.M{}
	for field, value := range f {
		query[field] = value
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "find %s", kind)
	}
	defer cur.Close(ctx)

	var out []models.Entity
	for cur.Next(ctx) {
		e, _ := models.New(kind)
		if err := cur.Decode(e); err != nil {
			return nil, errors.Wrapf(err, "decode %s", kind)
		}
		out = append(out, e)
	}
	return out, errors.Wrapf(cur.Err(), "iterate %s", kind)
}

func (s *MongoStore) Update(ctx context.Context, kind models.Kind, id string, fn MutateFunc) (models.Entity, error) {
	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < casAttempts; attempt++ {
		e, err := s.Get(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		rev := e.Revision()
		changed, err := fn(e)
		if err != nil {
			return nil, err
		}
		if !changed {
			return e, nil
		}
		e.SetRevision(rev + 1)

		res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "rev": rev}, e)
		if err != nil {
			return nil, errors.Wrapf(err, "update %s %s", kind, id)
		}
		if res.MatchedCount == 1 {
			return e, nil
		}
		log.Printf("[MongoStore] revision %d of %s %s moved, retrying", rev, kind, id)
	}
	return nil, errors.Wrapf(ErrConflict, "%s %s", kind, id)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}
