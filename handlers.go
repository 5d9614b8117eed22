package viewcounter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/viewcounter/counter"
	"github.com/eringen/viewcounter/internal/apierr"
	"github.com/eringen/viewcounter/newsletter"
)

// missingSlugMessage is the exact plain-text body existing clients expect
// when the slug is absent.
const missingSlugMessage = "Error occured: Missing `slug` parameter"

// internalErrorMessage replaces unexpected 5xx error details in responses;
// the full error is logged.
const internalErrorMessage = "Internal server error"

const (
	maxIncrementBody = 16 << 10
	defaultTopLimit  = 10
	maxTopLimit      = 100
	sseKeepAlive     = 25 * time.Second
)

func (a *App) handleIncrement(c echo.Context) error {
	if a.incLimiter != nil && !a.incLimiter.Allow(c.RealIP()) {
		return apierr.New(http.StatusTooManyRequests, "rate_limited", errors.New("Too many requests"))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxIncrementBody+1))
	if err != nil {
		return apierr.New(http.StatusBadRequest, "invalid_request", errors.New("Invalid request"))
	}
	if len(body) > maxIncrementBody {
		return apierr.New(http.StatusRequestEntityTooLarge, "body_too_large", errors.New("Request body too large"))
	}

	// The page script posts without a Content-Type, so the body is decoded
	// as JSON unconditionally. An empty body is the same as a missing slug.
	var req incrementRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return apierr.New(http.StatusBadRequest, "invalid_request", errors.New("Invalid request"))
		}
	}

	slug, err := counter.CanonicalSlug(req.Slug)
	switch {
	case errors.Is(err, counter.ErrMissingSlug):
		return c.String(http.StatusInternalServerError, missingSlugMessage)
	case err != nil:
		return apierr.New(http.StatusBadRequest, "invalid_slug", err)
	}

	// A client that navigates away must not cancel a view already counted
	// on its side.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), a.Config.StoreTimeout)
	defer cancel()

	total, err := a.store.Increment(ctx, slug)
	if err != nil {
		return fmt.Errorf("increment %s: %w", slug, err)
	}
	return c.JSON(http.StatusOK, incrementResponse{Total: total})
}

func (a *App) handleSubscriberCount(c echo.Context) error {
	n, err := a.newsletter.SubscriberCount(c.Request().Context())
	if err != nil {
		var ue *newsletter.UpstreamError
		switch {
		case errors.Is(err, newsletter.ErrNotConfigured):
			return apierr.New(http.StatusServiceUnavailable, "not_configured", errors.New("newsletter not configured"))
		case errors.As(err, &ue) && ue.Timeout:
			return apierr.New(http.StatusGatewayTimeout, "upstream_timeout", err)
		default:
			return apierr.New(http.StatusBadGateway, "upstream_error", err)
		}
	}
	return c.JSON(http.StatusOK, subscriberCountResponse{SubscriberCount: n})
}

func (a *App) handleGetViews(c echo.Context) error {
	slug, err := querySlug(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), a.Config.StoreTimeout)
	defer cancel()

	total, err := a.store.Get(ctx, slug)
	if err != nil {
		return fmt.Errorf("get %s: %w", slug, err)
	}
	return c.JSON(http.StatusOK, viewsResponse{Slug: slug, Total: total})
}

func (a *App) handleTopViews(c echo.Context) error {
	limit := defaultTopLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apierr.New(http.StatusBadRequest, "invalid_limit", errors.New("limit must be a positive integer"))
		}
		limit = min(n, maxTopLimit)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), a.Config.StoreTimeout)
	defer cancel()

	total, pages, err := a.topCache.Top(ctx, limit)
	if err != nil {
		return fmt.Errorf("list views: %w", err)
	}
	return c.JSON(http.StatusOK, topViewsResponse{Total: total, Pages: pages})
}

// handleViewStream pushes a slug's total as server-sent events: the current
// value first, then one event per change until the client goes away.
func (a *App) handleViewStream(c echo.Context) error {
	slug, err := querySlug(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	// Subscribe before reading so no change between the two is lost.
	updates, err := a.store.Subscribe(ctx, slug)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", slug, err)
	}
	getCtx, cancel := context.WithTimeout(ctx, a.Config.StoreTimeout)
	last, err := a.store.Get(getCtx, slug)
	cancel()
	if err != nil {
		return fmt.Errorf("get %s: %w", slug, err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, viewsResponse{Slug: slug, Total: last}); err != nil {
		return nil
	}

	ping := time.NewTicker(sseKeepAlive)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case total, ok := <-updates:
			if !ok {
				return nil
			}
			if total == last {
				continue
			}
			last = total
			if err := writeEvent(w, viewsResponse{Slug: slug, Total: total}); err != nil {
				a.log.Debug("view stream closed", "slug", slug, "error", err)
				return nil
			}
		case <-ping.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func writeEvent(w *echo.Response, v viewsResponse) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func querySlug(c echo.Context) (string, error) {
	slug, err := counter.CanonicalSlug(c.QueryParam("slug"))
	switch {
	case errors.Is(err, counter.ErrMissingSlug):
		return "", apierr.New(http.StatusBadRequest, "missing_slug", errors.New("Missing `slug` parameter"))
	case err != nil:
		return "", apierr.New(http.StatusBadRequest, "invalid_slug", err)
	}
	return slug, nil
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := apierr.StatusOf(err)
	msg := err.Error()
	var he *echo.HTTPError
	var ae *apierr.Error
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = fmt.Sprint(he.Message)
	case errors.As(err, &ae):
	case code >= 500:
		msg = internalErrorMessage
	}
	if code >= 500 {
		a.log.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", code,
			"error", err,
		)
	}
	_ = renderError(c, code, msg)
}
