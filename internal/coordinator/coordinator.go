// Package coordinator holds the process-wide reactive meal state: the
// in-progress capture, the latest analysis result, and the cached meal
// history list. It subscribes to session-change notifications and keeps
// the history cache consistent with authentication state: no token, no
// cached meals.
//
// One coordinator is constructed at startup and passed by reference to
// every consumer; it is torn down once at shutdown via Close.
package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/bus"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/gateway"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/models"
)

// fallbackRefreshMessage is shown when a refresh failure carries no
// usable message of its own.
const fallbackRefreshMessage = "Unable to load meals from the server right now."

// MealAPI is the slice of the gateway the coordinator needs.
type MealAPI interface {
	FetchMealHistory(ctx context.Context) ([]models.MealRecord, error)
}

// TokenReader reads the current auth token from the session store. The
// auth-change handler always re-reads the token through this interface
// before deciding whether to refresh or clear, so rapid successive
// logins/logouts are each evaluated against the latest stored state.
type TokenReader interface {
	Token(ctx context.Context) (string, error)
}

// Coordinator owns the capture, the analysis, and the history cache.
// All state access is mutex-guarded; mutations triggered by an in-flight
// refresh become no-ops once Close has run.
type Coordinator struct {
	api    MealAPI
	tokens TokenReader

	mu       sync.RWMutex
	capture  *models.Capture
	analysis *models.Analysis
	meals    []models.MealRecord
	loading  bool
	lastErr  string
	closed   bool

	unsubscribe func()
}

// New creates the coordinator, subscribes it to auth-change events, and
// performs the initial authentication evaluation (refreshing the history
// if a token already exists).
func New(api MealAPI, tokens TokenReader, events *bus.Bus) *Coordinator {
	c := &Coordinator{
		api:    api,
		tokens: tokens,
	}

	signals, unsubscribe := events.Subscribe()
	c.unsubscribe = unsubscribe

	go c.run(signals)

	return c
}

// run evaluates auth state once on startup and then once per auth-change
// signal, until the subscription is closed.
func (c *Coordinator) run(signals <-chan bus.AuthChanged) {
	c.handleAuthChange(context.Background())

	for range signals {
		c.handleAuthChange(context.Background())
	}
}

// handleAuthChange re-reads the current token and either clears the
// cache (no token) or refreshes it. Refresh failures on this reactive
// path are logged and absorbed; the explicit RefreshMeals path is the
// one that propagates them.
func (c *Coordinator) handleAuthChange(ctx context.Context) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Unable to read token on auth change, treating as signed out")
		token = ""
	}

	log.Info().Bool("has_token", token != "").Msg("Auth change detected")

	if token == "" {
		c.mu.Lock()
		if !c.closed {
			c.meals = nil
			c.lastErr = ""
		}
		c.mu.Unlock()
		return
	}

	if _, err := c.RefreshMeals(ctx); err != nil {
		log.Error().Err(err).Msg("History refresh failed")
	}
}

// RefreshMeals fetches the meal history and replaces the cache. On
// failure the cache is emptied, the error message is recorded for
// display, and the error is returned so explicit callers (for example
// the post-save flow) can react.
//
// Overlapping calls are not cancelled; a stale refresh completing after
// Close is discarded by the liveness guard.
func (c *Coordinator) RefreshMeals(ctx context.Context) ([]models.MealRecord, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("coordinator is closed")
	}
	c.loading = true
	c.lastErr = ""
	c.mu.Unlock()

	records, err := c.api.FetchMealHistory(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if c.closed {
		// Torn down while the fetch was in flight; drop the result.
		return records, err
	}

	if err != nil {
		c.meals = nil
		c.lastErr = refreshMessage(err)
		return nil, err
	}

	c.meals = records
	c.lastErr = ""
	log.Info().Int("count", len(records)).Msg("History cache updated")
	return records, nil
}

// refreshMessage extracts the human-readable message for display.
func refreshMessage(err error) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallbackRefreshMessage
}

// Meals returns a copy of the cached meal history.
func (c *Coordinator) Meals() []models.MealRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meals := make([]models.MealRecord, len(c.meals))
	copy(meals, c.meals)
	return meals
}

// MealsLoading reports whether a refresh is in flight.
func (c *Coordinator) MealsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// MealsError returns the message recorded by the last failed refresh,
// or "" after a success or cache clear.
func (c *Coordinator) MealsError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// SetCapture stores the in-progress capture. Pass nil to clear it.
func (c *Coordinator) SetCapture(capture *models.Capture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.capture = capture
}

// Capture returns the in-progress capture, or nil.
func (c *Coordinator) Capture() *models.Capture {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capture
}

// SetAnalysis stores the latest analysis result. Pass nil to clear it.
func (c *Coordinator) SetAnalysis(analysis *models.Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.analysis = analysis
}

// Analysis returns the latest analysis result, or nil.
func (c *Coordinator) Analysis() *models.Analysis {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.analysis
}

// ResetFlow clears the capture and analysis together, ending the current
// capture→processing→result flow.
func (c *Coordinator) ResetFlow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.capture = nil
	c.analysis = nil
}

// Close tears the coordinator down: the auth subscription is released
// and every later state mutation, including those from refreshes still
// in flight, becomes a no-op.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.unsubscribe()
}
