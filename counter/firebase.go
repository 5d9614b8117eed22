package counter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"github.com/eringen/viewcounter/internal/logger"
)

// FirebaseAuthUID is the uid the database rules see for this service.
const FirebaseAuthUID = "view-counter-function"

// FirebaseStore keeps counters in a Firebase Realtime Database under
// /views/<key>, where key is the slug escaped into a legal RTDB key.
type FirebaseStore struct {
	ref          *db.Ref
	log          *logger.Logger
	pollInterval time.Duration
}

// FirebaseDatabaseURL turns a database name into its URL. Full URLs pass
// through unchanged.
func FirebaseDatabaseURL(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "https://") || strings.HasPrefix(name, "http://") {
		return name
	}
	return "https://" + name + ".firebaseio.com"
}

// NewFirebaseStore authenticates with a service-account JSON blob.
func NewFirebaseStore(ctx context.Context, credentialsJSON, database string, log *logger.Logger, pollInterval time.Duration) (*FirebaseStore, error) {
	if strings.TrimSpace(credentialsJSON) == "" || strings.TrimSpace(database) == "" {
		return nil, fmt.Errorf("%w: firebase service account and database", ErrMissingCredentials)
	}
	override := map[string]interface{}{"uid": FirebaseAuthUID}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		DatabaseURL:  FirebaseDatabaseURL(database),
		AuthOverride: &override,
	}, option.WithCredentialsJSON([]byte(credentialsJSON)))
	if err != nil {
		return nil, fmt.Errorf("counter: firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("counter: firebase database: %w", err)
	}
	return &FirebaseStore{
		ref:          client.NewRef(Namespace),
		log:          log.With("service", "FirebaseCounterStore"),
		pollInterval: pollInterval,
	}, nil
}

// Increment runs a database transaction, which the server retries until
// the compare-and-set on the node succeeds.
func (s *FirebaseStore) Increment(ctx context.Context, slug string) (int64, error) {
	// The update function may run several times; n holds the value of the
	// attempt that committed.
	var n int64
	err := s.ref.Child(firebaseKey(slug)).Transaction(ctx, func(tn db.TransactionNode) (interface{}, error) {
		var cur int64
		if err := tn.Unmarshal(&cur); err != nil {
			return nil, err
		}
		n = cur + 1
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("counter: firebase increment: %w", err)
	}
	return n, nil
}

func (s *FirebaseStore) Get(ctx context.Context, slug string) (int64, error) {
	var n int64
	if err := s.ref.Child(firebaseKey(slug)).Get(ctx, &n); err != nil {
		return 0, fmt.Errorf("counter: firebase get: %w", err)
	}
	return n, nil
}

func (s *FirebaseStore) List(ctx context.Context) ([]PageViews, error) {
	var all map[string]int64
	if err := s.ref.Get(ctx, &all); err != nil {
		return nil, fmt.Errorf("counter: firebase list: %w", err)
	}
	pages := make([]PageViews, 0, len(all))
	for key, n := range all {
		pages = append(pages, PageViews{Slug: firebaseSlug(key), Views: n})
	}
	return pages, nil
}

// Subscribe polls: the admin SDK has no streaming listeners.
func (s *FirebaseStore) Subscribe(ctx context.Context, slug string) (<-chan int64, error) {
	return pollSubscribe(ctx, s.log, s.pollInterval, slug, s.Get)
}

func (s *FirebaseStore) Close() error { return nil }

// RTDB keys may not contain . $ # [ ] / or control characters. Those
// (and % itself) are percent-escaped so the mapping is reversible.
func firebaseKey(slug string) string {
	var b strings.Builder
	for i := 0; i < len(slug); i++ {
		c := slug[i]
		switch c {
		case '.', '$', '#', '[', ']', '/', '%':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func firebaseSlug(key string) string {
	s, err := url.PathUnescape(key)
	if err != nil {
		return key
	}
	return s
}
