package counter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eringen/viewcounter/internal/logger"
)

// MongoStore keeps one document per slug in the views collection:
// {_id: <slug>, views: <n>}.
type MongoStore struct {
	client       *mongo.Client
	coll         *mongo.Collection
	log          *logger.Logger
	pollInterval time.Duration
}

type viewDoc struct {
	Slug  string `bson:"_id"`
	Views int64  `bson:"views"`
}

// NewMongoStore connects to uri and pings the primary.
func NewMongoStore(ctx context.Context, uri, database string, log *logger.Logger, pollInterval time.Duration) (*MongoStore, error) {
	if strings.TrimSpace(uri) == "" || strings.TrimSpace(database) == "" {
		return nil, fmt.Errorf("%w: mongo uri and database", ErrMissingCredentials)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("counter: mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("counter: mongo ping: %w", err)
	}
	return &MongoStore{
		client:       client,
		coll:         client.Database(database).Collection(Namespace),
		log:          log.With("service", "MongoCounterStore"),
		pollInterval: pollInterval,
	}, nil
}

// Increment uses $inc with upsert; the server applies it atomically to the
// single document and hands back the post-update version.
func (s *MongoStore) Increment(ctx context.Context, slug string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var doc viewDoc
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": slug},
		bson.M{"$inc": bson.M{"views": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("counter: mongo increment: %w", err)
	}
	return doc.Views, nil
}

func (s *MongoStore) Get(ctx context.Context, slug string) (int64, error) {
	var doc viewDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": slug}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter: mongo get: %w", err)
	}
	return doc.Views, nil
}

func (s *MongoStore) List(ctx context.Context) ([]PageViews, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "views", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("counter: mongo list: %w", err)
	}
	var docs []viewDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("counter: mongo list: %w", err)
	}
	pages := make([]PageViews, len(docs))
	for i, d := range docs {
		pages[i] = PageViews{Slug: d.Slug, Views: d.Views}
	}
	return pages, nil
}

// Subscribe opens a change stream on the slug's document. Change streams
// need a replica set; on a standalone server it falls back to polling.
func (s *MongoStore) Subscribe(ctx context.Context, slug string) (<-chan int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: slug}}}},
	}
	stream, err := s.coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		s.log.Debug("change stream unavailable, polling", "slug", slug, "error", err)
		return pollSubscribe(ctx, s.log, s.pollInterval, slug, s.Get)
	}

	out := make(chan int64, 1)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			var ev struct {
				FullDocument *viewDoc `bson:"fullDocument"`
			}
			if err := stream.Decode(&ev); err != nil {
				s.log.Warn("bad change stream event", "error", err)
				continue
			}
			if ev.FullDocument != nil {
				offer(out, ev.FullDocument.Views)
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn("change stream ended", "slug", slug, "error", err)
		}
	}()
	return out, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
