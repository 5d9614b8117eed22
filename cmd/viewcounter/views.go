package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/eringen/viewcounter"
	"github.com/eringen/viewcounter/counter"
	"github.com/eringen/viewcounter/internal/logger"
)

func parseLimit(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer, got %q", s)
	}
	return n, nil
}

func runViews(out io.Writer, limit int) error {
	cfg, err := viewcounter.LoadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := counter.Open(ctx, cfg.Counter, log)
	if err != nil {
		return err
	}
	defer store.Close()

	return printTop(ctx, out, store, limit)
}

// printTop writes a two-column table of the top pages followed by the
// total across every page. limit 0 prints everything.
func printTop(ctx context.Context, out io.Writer, store counter.Store, limit int) error {
	pages, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list views: %w", err)
	}
	counter.SortByViews(pages)
	total := counter.Total(pages)
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "VIEWS\tPAGE\t")
	for _, p := range pages {
		fmt.Fprintf(tw, "%d\t%s\t\n", p.Views, p.Slug)
	}
	fmt.Fprintf(tw, "%d\t(total)\t\n", total)
	return tw.Flush()
}
