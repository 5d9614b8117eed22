package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/eringen/viewcounter/counter"
)

func TestFormatCount(t *testing.T) {
	cases := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
		-1234:   "-1,234",
		-123456: "-123,456",
		100000:  "100,000",
	}
	for in, want := range cases {
		if got := FormatCount(in); got != want {
			t.Fatalf("FormatCount(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestAdminLoginShowsError(t *testing.T) {
	var buf bytes.Buffer
	if err := AdminLogin(true, `tok"en`).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Invalid password") {
		t.Fatal("expected error notice")
	}
	if !strings.Contains(out, `value="tok&#34;en"`) {
		t.Fatalf("CSRF token not escaped: %s", out)
	}

	buf.Reset()
	_ = AdminLogin(false, "t").Render(context.Background(), &buf)
	if strings.Contains(buf.String(), "Invalid password") {
		t.Fatal("error notice shown without a failed attempt")
	}
}

func TestAdminStatsTable(t *testing.T) {
	var buf bytes.Buffer
	pages := []counter.PageViews{{Slug: "/a&b", Views: 1500}, {Slug: "/c", Views: 2}}
	if err := AdminStats(1502, pages, "t").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"1,502 views across 2 pages", "/a&amp;b", "1,500", `action="/admin/logout/"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	_ = AdminStats(0, nil, "t").Render(context.Background(), &buf)
	if !strings.Contains(buf.String(), "No views recorded yet.") {
		t.Fatal("expected empty-state message")
	}
}
