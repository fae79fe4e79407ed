package gateway

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/reactive"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/schema"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
	"github.com/AppleFlash/BackgroundRealm/internal/worker"
)

const waitTimeout = 5 * time.Second

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int64  `json:"age"`
}

type UserContainer struct {
	ID    string `json:"id"`
	Users []User `json:"users"`
}

type Note struct {
	Text string `json:"text"`
}

var (
	userDec      Decoder[User]          = record.JSONDecoder[User]()
	userEnc      Encoder[User]          = record.JSONEncoder[User]()
	containerEnc Encoder[UserContainer] = record.JSONEncoder[UserContainer]()
	containerDec Decoder[UserContainer] = record.JSONDecoder[UserContainer]()
	noteDec      Decoder[Note]          = record.JSONDecoder[Note]()
	noteEnc      Encoder[Note]          = record.JSONEncoder[Note]()
)

func sameUser(a, b User) bool { return a.ID == b.ID }

func userByID(id string) query.Query {
	return query.Where("User", query.Eq("id", record.String(id)))
}

var mainList = List{
	Container: query.Where("UserContainer", query.Eq("id", record.String("main"))),
	Field:     "users",
	Key:       "id",
}

type fixture struct {
	g     *Gateway
	store *store.Store
	pool  *worker.Pool
	reg   *prometheus.Registry
}

// newFixture opens a temp store and a gateway owning its regular queue.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	kinds, err := schema.New(
		schema.Kind{Name: "User", PrimaryKey: "id"},
		schema.Kind{Name: "UserContainer", PrimaryKey: "id", Lists: []string{"users"}},
		schema.Kind{Name: "Note"},
	)
	require.NoError(t, err)

	cfg := store.DefaultConfig(filepath.Join(t.TempDir(), "gateway.db"))
	cfg.Schema = kinds
	s, err := store.Open(cfg)
	require.NoError(t, err)

	pool, err := worker.NewPool()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	g, err := New(Config{
		Open:       store.Static(s),
		Pool:       pool,
		Logger:     slog.Default(),
		Registerer: reg,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		g.Close()
		pool.Shutdown()
		s.Close()
	})
	return &fixture{g: g, store: s, pool: pool, reg: reg}
}

func await[T any](t *testing.T, s reactive.Single[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	v, err := s.Await(ctx)
	require.NoError(t, err)
	return v
}

func awaitErr[T any](t *testing.T, s reactive.Single[T]) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	_, err := s.Await(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return err
}

// stream buffers the events of one subscription.
type stream[T any] struct {
	values chan T
	errs   chan error
	sub    *reactive.Subscription
}

func subscribe[T any](t *testing.T, o reactive.Observable[T]) *stream[T] {
	t.Helper()
	s := &stream[T]{
		values: make(chan T, 256),
		errs:   make(chan error, 1),
	}
	s.sub = o.Subscribe(reactive.Observer[T]{
		Next:  func(v T) { s.values <- v },
		Error: func(err error) { s.errs <- err },
	})
	t.Cleanup(s.sub.Cancel)
	return s
}

func (s *stream[T]) next(t *testing.T) T {
	t.Helper()
	select {
	case v := <-s.values:
		return v
	case err := <-s.errs:
		t.Fatalf("stream failed: %v", err)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a value")
	}
	panic("unreachable")
}

func (s *stream[T]) err(t *testing.T) error {
	t.Helper()
	select {
	case err := <-s.errs:
		return err
	case v := <-s.values:
		t.Fatalf("unexpected value %v", v)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an error")
	}
	panic("unreachable")
}

// quiet asserts nothing arrives for a short while.
func (s *stream[T]) quiet(t *testing.T) {
	t.Helper()
	select {
	case v := <-s.values:
		t.Fatalf("unexpected value %v", v)
	case err := <-s.errs:
		t.Fatalf("unexpected error %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
