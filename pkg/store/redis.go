package store

import (
	"context"
	goerrors "errors"
	"net/url"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
)

// DefaultRedisKey is used when a redis URI has no key parameter.
const DefaultRedisKey = "parcelgrid:plots"

// RedisStore keeps the document as a single string value.
type RedisStore struct {
	client   *redis.Client
	key      string
	location string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, location: "redis://" + client.Options().Addr + "?key=" + key}
}

func openRedis(u *url.URL) (*RedisStore, error) {
	key := takeParam(u, "key")
	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse redis uri")
	}
	s := NewRedisStore(redis.NewClient(opts), key)
	s.location = u.Redacted()
	if key != "" {
		s.location += "?key=" + key
	}
	return s, nil
}

// Key returns the redis key holding the document.
func (s *RedisStore) Key() string { return s.key }

// Location returns the redis URI without password.
func (s *RedisStore) Location() string { return s.location }

// Load reads the document value.
func (s *RedisStore) Load(ctx context.Context) (parcel.Document, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if goerrors.Is(err, redis.Nil) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "document not found: redis key %q", s.key)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "redis get %q", s.key)
	}
	return parcel.Decode(data)
}

// Save overwrites the document value. SET replaces the value atomically.
func (s *RedisStore) Save(ctx context.Context, doc parcel.Document) error {
	data, err := parcel.Encode(doc)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode document")
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "redis set %q", s.key)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
