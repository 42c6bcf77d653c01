package coordinator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/bus"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/coordinator"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/gateway"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/models"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/testutil"
)

// fakeMealAPI is a scriptable history endpoint.
type fakeMealAPI struct {
	mu      sync.Mutex
	records []models.MealRecord
	err     error
	calls   int
}

func (f *fakeMealAPI) FetchMealHistory(context.Context) ([]models.MealRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.records, f.err
}

func (f *fakeMealAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeMealAPI) set(records []models.MealRecord, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.err = err
}

// blockingMealAPI parks FetchMealHistory until released, to hold a
// refresh in flight.
type blockingMealAPI struct {
	started chan struct{}
	release chan struct{}
	records []models.MealRecord
}

func (b *blockingMealAPI) FetchMealHistory(context.Context) ([]models.MealRecord, error) {
	close(b.started)
	<-b.release
	return b.records, nil
}

// fakeTokens is a mutable token store stand-in.
type fakeTokens struct {
	mu    sync.Mutex
	value string
	err   error
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

func (f *fakeTokens) set(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
}

func sampleMeals() []models.MealRecord {
	return []models.MealRecord{
		{ID: "m1", Name: "Salad", Calories: testutil.FloatPtr(180)},
		{ID: "m2", Name: "Soup", Calories: testutil.FloatPtr(220)},
	}
}

func TestStartupRefresh(t *testing.T) {
	t.Run("refreshes the cache when a token already exists", func(t *testing.T) {
		api := &fakeMealAPI{}
		api.set(sampleMeals(), nil)
		tokens := &fakeTokens{value: "tok"}

		c := coordinator.New(api, tokens, bus.New())
		defer c.Close()

		require.Eventually(t, func() bool {
			return len(c.Meals()) == 2
		}, 2*time.Second, 10*time.Millisecond)
		assert.Empty(t, c.MealsError())
	})

	t.Run("never fetches while signed out", func(t *testing.T) {
		api := &fakeMealAPI{}
		tokens := &fakeTokens{}

		c := coordinator.New(api, tokens, bus.New())
		defer c.Close()

		time.Sleep(100 * time.Millisecond)
		assert.Zero(t, api.callCount())
		assert.Empty(t, c.Meals())
	})
}

func TestAuthChangeReactions(t *testing.T) {
	t.Run("login signal triggers a refresh", func(t *testing.T) {
		api := &fakeMealAPI{}
		api.set(sampleMeals(), nil)
		tokens := &fakeTokens{}
		events := bus.New()

		c := coordinator.New(api, tokens, events)
		defer c.Close()

		tokens.set("tok")
		events.Publish(bus.AuthChanged{HasToken: true})

		require.Eventually(t, func() bool {
			return len(c.Meals()) == 2
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("logout signal clears the cache in one step", func(t *testing.T) {
		api := &fakeMealAPI{}
		api.set(sampleMeals(), nil)
		tokens := &fakeTokens{value: "tok"}
		events := bus.New()

		c := coordinator.New(api, tokens, events)
		defer c.Close()

		require.Eventually(t, func() bool {
			return len(c.Meals()) == 2
		}, 2*time.Second, 10*time.Millisecond)

		tokens.set("")
		events.Publish(bus.AuthChanged{HasToken: false})

		require.Eventually(t, func() bool {
			return len(c.Meals()) == 0
		}, 2*time.Second, 10*time.Millisecond)
		assert.Empty(t, c.MealsError())
	})

	t.Run("token read failure is treated as signed out", func(t *testing.T) {
		api := &fakeMealAPI{}
		api.set(sampleMeals(), nil)
		tokens := &fakeTokens{err: errors.New("storage unavailable")}
		events := bus.New()

		c := coordinator.New(api, tokens, events)
		defer c.Close()

		time.Sleep(100 * time.Millisecond)
		assert.Zero(t, api.callCount())
	})
}

func TestRefreshMeals(t *testing.T) {
	ctx := context.Background()

	t.Run("failure empties the cache and records the message", func(t *testing.T) {
		api := &fakeMealAPI{}
		api.set(sampleMeals(), nil)
		tokens := &fakeTokens{value: "tok"}

		c := coordinator.New(api, tokens, bus.New())
		defer c.Close()

		require.Eventually(t, func() bool {
			return len(c.Meals()) == 2
		}, 2*time.Second, 10*time.Millisecond)

		api.set(nil, &gateway.APIError{StatusCode: 503, Message: "backend down"})

		_, err := c.RefreshMeals(ctx)
		require.Error(t, err)
		assert.Empty(t, c.Meals())
		assert.Equal(t, "backend down", c.MealsError())
		assert.False(t, c.MealsLoading())
	})

	t.Run("failure without an API message uses the error text", func(t *testing.T) {
		api := &fakeMealAPI{err: errors.New("connection reset")}
		tokens := &fakeTokens{}

		c := coordinator.New(api, tokens, bus.New())
		defer c.Close()

		_, err := c.RefreshMeals(ctx)
		require.Error(t, err)
		assert.Equal(t, "connection reset", c.MealsError())
	})

	t.Run("success clears a previous error", func(t *testing.T) {
		api := &fakeMealAPI{err: errors.New("flaky")}
		tokens := &fakeTokens{}

		c := coordinator.New(api, tokens, bus.New())
		defer c.Close()

		_, err := c.RefreshMeals(ctx)
		require.Error(t, err)

		api.set(sampleMeals(), nil)
		records, err := c.RefreshMeals(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Empty(t, c.MealsError())
	})

	t.Run("refresh completing after close is discarded", func(t *testing.T) {
		api := &blockingMealAPI{
			started: make(chan struct{}),
			release: make(chan struct{}),
			records: sampleMeals(),
		}

		c := coordinator.New(api, &fakeTokens{}, bus.New())

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = c.RefreshMeals(ctx)
		}()

		select {
		case <-api.started:
		case <-time.After(2 * time.Second):
			t.Fatal("refresh never reached the backend")
		}
		assert.True(t, c.MealsLoading())

		c.Close()
		close(api.release)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("refresh never returned")
		}

		assert.Empty(t, c.Meals())
		assert.Empty(t, c.MealsError())
		assert.False(t, c.MealsLoading())
	})

	t.Run("refusing to run after close", func(t *testing.T) {
		api := &fakeMealAPI{}
		c := coordinator.New(api, &fakeTokens{}, bus.New())
		c.Close()

		_, err := c.RefreshMeals(ctx)
		assert.Error(t, err)
	})
}

func TestFlowState(t *testing.T) {
	t.Run("capture and analysis round-trip", func(t *testing.T) {
		c := coordinator.New(&fakeMealAPI{}, &fakeTokens{}, bus.New())
		defer c.Close()

		capture := &models.Capture{FilePath: "/tmp/lunch.jpg"}
		analysis := &models.Analysis{Meal: "Pasta", Calories: testutil.FloatPtr(420)}

		c.SetCapture(capture)
		c.SetAnalysis(analysis)

		assert.Equal(t, capture, c.Capture())
		assert.Equal(t, analysis, c.Analysis())
	})

	t.Run("reset clears capture and analysis together", func(t *testing.T) {
		c := coordinator.New(&fakeMealAPI{}, &fakeTokens{}, bus.New())
		defer c.Close()

		c.SetCapture(&models.Capture{FilePath: "/tmp/lunch.jpg"})
		c.SetAnalysis(&models.Analysis{Meal: "Pasta"})
		c.ResetFlow()

		assert.Nil(t, c.Capture())
		assert.Nil(t, c.Analysis())
	})

	t.Run("mutations after close are dropped", func(t *testing.T) {
		c := coordinator.New(&fakeMealAPI{}, &fakeTokens{}, bus.New())
		c.Close()

		c.SetCapture(&models.Capture{FilePath: "/tmp/lunch.jpg"})
		c.SetAnalysis(&models.Analysis{Meal: "Pasta"})

		assert.Nil(t, c.Capture())
		assert.Nil(t, c.Analysis())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		c := coordinator.New(&fakeMealAPI{}, &fakeTokens{}, bus.New())
		c.Close()
		c.Close()
	})
}
