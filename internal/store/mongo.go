package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// node is the Mongo representation of one tree record. The path is the _id,
// so Create relies on the primary key for an atomic check-and-insert.
type node struct {
	Path   string      `bson:"_id"`
	Parent string      `bson:"parent"`
	Key    string      `bson:"key"`
	Value  interface{} `bson:"value"`
}

type storedNode struct {
	Path  string   `bson:"_id"`
	Value bson.Raw `bson:"value"`
}

// MongoTree implements Tree on a single Mongo collection.
type MongoTree struct {
	col *mongo.Collection
}

// NewMongoTree wraps col and ensures the parent index used by Children.
func NewMongoTree(ctx context.Context, col *mongo.Collection) (*MongoTree, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "parent", Value: 1}, {Key: "_id", Value: 1}}}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("mongo tree index: %w", err)
	}
	return &MongoTree{col: col}, nil
}

func newNode(path string, v interface{}) node {
	parent, key := splitParent(path)
	return node{Path: path, Parent: parent, Key: key, Value: v}
}

func (m *MongoTree) Get(ctx context.Context, path string, out interface{}) (bool, error) {
	if err := validatePath(path); err != nil {
		return false, err
	}
	var n storedNode
	err := m.col.FindOne(ctx, bson.M{"_id": path}).Decode(&n)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}
	if out == nil {
		return true, nil
	}
	return true, bson.Unmarshal(n.Value, out)
}

func (m *MongoTree) Exists(ctx context.Context, path string) (bool, error) {
	if err := validatePath(path); err != nil {
		return false, err
	}
	n, err := m.col.CountDocuments(ctx, bson.M{"_id": path}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *MongoTree) Set(ctx context.Context, path string, v interface{}) error {
	if err := validatePath(path); err != nil {
		return err
	}
	_, err := m.col.ReplaceOne(ctx, bson.M{"_id": path}, newNode(path, v), options.Replace().SetUpsert(true))
	return err
}

func (m *MongoTree) Create(ctx context.Context, path string, v interface{}) error {
	if err := validatePath(path); err != nil {
		return err
	}
	_, err := m.col.InsertOne(ctx, newNode(path, v))
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	return err
}

func (m *MongoTree) Update(ctx context.Context, path string, partial map[string]interface{}) error {
	if err := validatePath(path); err != nil {
		return err
	}
	set := bson.M{}
	for k, v := range partial {
		set["value."+k] = v
	}
	if len(set) == 0 {
		return nil
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": path}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoTree) Push(ctx context.Context, path string, v interface{}) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	key := id.String()
	if err := m.Create(ctx, Join(path, key), v); err != nil {
		return "", err
	}
	return key, nil
}

func (m *MongoTree) Children(ctx context.Context, path string) ([]Entry, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	cur, err := m.col.Find(ctx, bson.M{"parent": path}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Entry{}
	for cur.Next(ctx) {
		var n storedNode
		if err := cur.Decode(&n); err != nil {
			return nil, err
		}
		_, key := splitParent(n.Path)
		raw := n.Value
		out = append(out, Entry{Key: key, decode: func(v interface{}) error { return bson.Unmarshal(raw, v) }})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
