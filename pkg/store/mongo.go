package store

import (
	"context"
	goerrors "errors"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
)

// Defaults for mongodb URIs that leave out the path or parameters.
const (
	DefaultMongoDatabase   = "parcelgrid"
	DefaultMongoCollection = "documents"
	DefaultMongoName       = "plots"
)

// mongoRecord is the stored form. The document is kept as its JSON text so
// that field order and number formatting survive a round trip.
type mongoRecord struct {
	Name      string    `bson:"_id"`
	Document  string    `bson:"document"`
	Parcels   int       `bson:"parcels"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps the document as one record in a collection, keyed by
// name.
type MongoStore struct {
	client   *mongo.Client
	coll     *mongo.Collection
	name     string
	location string
}

// NewMongoStore wraps an existing collection.
func NewMongoStore(client *mongo.Client, coll *mongo.Collection, name string) *MongoStore {
	if name == "" {
		name = DefaultMongoName
	}
	return &MongoStore{
		client:   client,
		coll:     coll,
		name:     name,
		location: "mongodb://" + coll.Database().Name() + "/" + coll.Name() + "/" + name,
	}
}

func openMongo(ctx context.Context, u *url.URL) (*MongoStore, error) {
	collection := takeParam(u, "collection")
	if collection == "" {
		collection = DefaultMongoCollection
	}
	name := takeParam(u, "name")
	database := strings.Trim(u.Path, "/")
	if database == "" {
		database = DefaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(u.String()))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "connect to mongodb")
	}
	s := NewMongoStore(client, client.Database(database).Collection(collection), name)
	s.location = u.Redacted() + "#" + collection + "/" + s.name
	return s, nil
}

// Name returns the record name.
func (s *MongoStore) Name() string { return s.name }

// Location returns the mongodb URI without password.
func (s *MongoStore) Location() string { return s.location }

// Load fetches the record.
func (s *MongoStore) Load(ctx context.Context) (parcel.Document, error) {
	var rec mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": s.name}).Decode(&rec)
	if goerrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "document not found: %s", s.name)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "find %s", s.name)
	}
	return parcel.Decode([]byte(rec.Document))
}

// Save upserts the record.
func (s *MongoStore) Save(ctx context.Context, doc parcel.Document) error {
	data, err := parcel.Encode(doc)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode document")
	}
	rec := mongoRecord{
		Name:      s.name,
		Document:  string(data),
		Parcels:   len(doc),
		UpdatedAt: time.Now().UTC(),
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": s.name}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "replace %s", s.name)
	}
	return nil
}

// Close disconnects the client if the store owns one.
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
