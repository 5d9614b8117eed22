package counter

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/eringen/viewcounter/internal/logger"
)

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "etcd"}, nil)
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v, want ErrUnknownDriver", err)
	}
}

func TestOpenMissingCredentials(t *testing.T) {
	for _, driver := range []string{DriverRedis, DriverMongo, DriverFirebase} {
		_, err := Open(context.Background(), Config{Driver: driver}, nil)
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("%s: err = %v, want ErrMissingCredentials", driver, err)
		}
	}
}

func TestConnectorReturnsSameStore(t *testing.T) {
	opened := 0
	c := NewConnector(logger.NewNop(), nil)
	c.open = func(context.Context, Config, *logger.Logger) (Store, error) {
		opened++
		return NewMemoryStore(), nil
	}

	first, err := c.Connect(context.Background(), Config{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("first Connect failed: %v", err)
	}
	second, err := c.Connect(context.Background(), Config{Driver: DriverMemory})
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Connect err = %v, want ErrAlreadyInitialized", err)
	}
	if first != second {
		t.Fatal("second Connect returned a different store")
	}
	if opened != 1 {
		t.Fatalf("opened %d stores, want 1", opened)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := c.Connect(context.Background(), Config{Driver: DriverMemory}); err != nil {
		t.Fatalf("Connect after Close failed: %v", err)
	}
	if opened != 2 {
		t.Fatalf("opened %d stores, want 2", opened)
	}
}

func TestConnectorSurfacesInitFailure(t *testing.T) {
	boom := errors.New("boom")
	c := NewConnector(logger.NewNop(), nil)
	c.open = func(context.Context, Config, *logger.Logger) (Store, error) {
		return nil, boom
	}
	if _, err := c.Connect(context.Background(), Config{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	// a failed attempt must not count as initialized
	c.open = func(context.Context, Config, *logger.Logger) (Store, error) {
		return NewMemoryStore(), nil
	}
	if _, err := c.Connect(context.Background(), Config{}); err != nil {
		t.Fatalf("retry Connect failed: %v", err)
	}
}

func TestInstrumentRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	s := Instrument(NewMemoryStore(), tp.Tracer("test"))

	if _, err := s.Increment(context.Background(), "/traced"); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if _, err := s.Get(context.Background(), "/traced"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "counter.Increment" || spans[1].Name() != "counter.Get" {
		t.Errorf("span names = %q, %q", spans[0].Name(), spans[1].Name())
	}
}
