package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/eringen/viewcounter/counter"
)

func TestPrintTopOrdersAndLimits(t *testing.T) {
	ctx := context.Background()
	store := counter.NewMemoryStore()
	defer store.Close()

	for slug, n := range map[string]int{"/a": 1, "/b": 3, "/c": 2} {
		for i := 0; i < n; i++ {
			if _, err := store.Increment(ctx, slug); err != nil {
				t.Fatalf("Increment(%s): %v", slug, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := printTop(ctx, &buf, store, 2); err != nil {
		t.Fatalf("printTop: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, 2 rows and total, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "/b") || !strings.Contains(lines[2], "/c") {
		t.Fatalf("rows not ordered by views:\n%s", buf.String())
	}
	if !strings.Contains(lines[3], "6") {
		t.Fatalf("total should count every page, got %q", lines[3])
	}
}

func TestParseLimit(t *testing.T) {
	if n, err := parseLimit("25"); err != nil || n != 25 {
		t.Fatalf("parseLimit(25) = %d, %v", n, err)
	}
	for _, bad := range []string{"-1", "ten", ""} {
		if _, err := parseLimit(bad); err == nil {
			t.Fatalf("parseLimit(%q) should fail", bad)
		}
	}
}
