package flow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/bus"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/coordinator"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/flow"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/gateway"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/models"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/session"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/testutil"
)

// fakeBackend scripts every gateway call the flows and the coordinator
// make.
type fakeBackend struct {
	mu sync.Mutex

	loginResponse *gateway.AuthResponse
	loginErr      error
	lastLogin     gateway.Credentials

	signUpResponse *gateway.AuthResponse
	signUpErr      error
	signUpCalls    int

	currentUser    *models.AuthUser
	currentUserErr error

	prediction   *models.PredictResponse
	predictErr   error
	lastFilename string
	lastOpts     gateway.PredictOptions

	history    []models.MealRecord
	historyErr error
}

func (f *fakeBackend) Login(_ context.Context, credentials gateway.Credentials) (*gateway.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogin = credentials
	return f.loginResponse, f.loginErr
}

func (f *fakeBackend) SignUp(_ context.Context, _ gateway.SignUpRequest) (*gateway.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls++
	return f.signUpResponse, f.signUpErr
}

func (f *fakeBackend) FetchCurrentUser(context.Context) (*models.AuthUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentUser, f.currentUserErr
}

func (f *fakeBackend) PredictMeal(_ context.Context, _ []byte, filename string, opts gateway.PredictOptions) (*models.PredictResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilename = filename
	f.lastOpts = opts
	return f.prediction, f.predictErr
}

func (f *fakeBackend) FetchMealHistory(context.Context) ([]models.MealRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, f.historyErr
}

func newTestFlow(t *testing.T) (*flow.Flow, *fakeBackend, *session.Store, *coordinator.Coordinator) {
	t.Helper()

	api := &fakeBackend{
		loginResponse: &gateway.AuthResponse{
			Token: "issued-token",
			User:  &models.AuthUser{ID: "u1", Email: "test@example.com"},
		},
		signUpResponse: &gateway.AuthResponse{
			Token: "issued-token",
			User:  &models.AuthUser{ID: "u1", Email: "test@example.com"},
		},
		prediction: &models.PredictResponse{Meal: "Pasta"},
		history:    []models.MealRecord{{ID: "m1", Name: "Salad", ConsumedAt: "2024-01-05"}},
	}

	backing := testutil.NewTestFileStore(t)
	events := bus.New()
	sessions := session.New(backing, events)
	state := coordinator.New(api, sessions, events)
	t.Cleanup(state.Close)

	return flow.New(api, sessions, state), api, sessions, state
}

func writePhoto(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lunch.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o600))
	return path
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the session and warms the history", func(t *testing.T) {
		f, api, sessions, state := newTestFlow(t)

		user, err := f.Login(ctx, "test@example.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "test@example.com", user.Email)
		assert.Equal(t, "password", user.Provider)
		assert.Equal(t, "test@example.com", api.lastLogin.Email)

		assert.True(t, sessions.IsAuthenticated(ctx))

		require.Eventually(t, func() bool {
			return len(state.Meals()) == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("trims the email before sending", func(t *testing.T) {
		f, api, _, _ := newTestFlow(t)

		_, err := f.Login(ctx, "  test@example.com  ", "secret")
		require.NoError(t, err)
		assert.Equal(t, "test@example.com", api.lastLogin.Email)
	})

	t.Run("missing token is an error", func(t *testing.T) {
		f, api, sessions, _ := newTestFlow(t)
		api.loginResponse = &gateway.AuthResponse{}

		_, err := f.Login(ctx, "test@example.com", "secret")
		require.Error(t, err)
		assert.False(t, sessions.IsAuthenticated(ctx))
	})

	t.Run("backend failure propagates untouched", func(t *testing.T) {
		f, api, _, _ := newTestFlow(t)
		api.loginErr = &gateway.APIError{StatusCode: 401, Message: "invalid credentials"}

		_, err := f.Login(ctx, "test@example.com", "wrong")

		var apiErr *gateway.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "invalid credentials", apiErr.Message)
	})

	t.Run("backfills the user record from the profile endpoint", func(t *testing.T) {
		f, api, sessions, _ := newTestFlow(t)
		api.loginResponse = &gateway.AuthResponse{Token: "issued-token"}
		api.currentUser = &models.AuthUser{ID: "u7", Email: "profile@example.com"}

		user, err := f.Login(ctx, "test@example.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "profile@example.com", user.Email)

		stored := sessions.User(ctx)
		require.NotNil(t, stored)
		assert.Equal(t, "u7", stored.ID)
	})

	t.Run("backfill failure is swallowed", func(t *testing.T) {
		f, api, sessions, _ := newTestFlow(t)
		api.loginResponse = &gateway.AuthResponse{Token: "issued-token"}
		api.currentUserErr = errors.New("profile unavailable")

		user, err := f.Login(ctx, "test@example.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "test@example.com", user.Email)
		assert.True(t, sessions.IsAuthenticated(ctx))
	})

	t.Run("post-login refresh failure is swallowed", func(t *testing.T) {
		f, api, sessions, _ := newTestFlow(t)
		api.historyErr = errors.New("history unavailable")

		_, err := f.Login(ctx, "test@example.com", "secret")
		require.NoError(t, err)
		assert.True(t, sessions.IsAuthenticated(ctx))
	})
}

func TestSignUpFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("mismatched confirmation never reaches the backend", func(t *testing.T) {
		f, api, _, _ := newTestFlow(t)

		_, err := f.SignUp(ctx, "test@example.com", "secret", "different")
		require.EqualError(t, err, "passwords do not match")
		assert.Zero(t, api.signUpCalls)
	})

	t.Run("persists the session from the signup response", func(t *testing.T) {
		f, _, sessions, _ := newTestFlow(t)

		user, err := f.SignUp(ctx, "typed@example.com", "secret", "secret")
		require.NoError(t, err)

		// The backend's canonical email wins over what was typed.
		assert.Equal(t, "test@example.com", user.Email)
		assert.Equal(t, "u1", user.ID)
		assert.True(t, sessions.IsAuthenticated(ctx))
	})

	t.Run("backend failure propagates", func(t *testing.T) {
		f, api, sessions, _ := newTestFlow(t)
		api.signUpErr = &gateway.APIError{StatusCode: 409, Message: "email already registered"}

		_, err := f.SignUp(ctx, "test@example.com", "secret", "secret")
		require.Error(t, err)
		assert.False(t, sessions.IsAuthenticated(ctx))
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	f, _, sessions, state := newTestFlow(t)

	_, err := f.Login(ctx, "test@example.com", "secret")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(state.Meals()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.Logout(ctx))

	assert.False(t, sessions.IsAuthenticated(ctx))
	require.Eventually(t, func() bool {
		return len(state.Meals()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartCapture(t *testing.T) {
	t.Run("records the capture and clears any previous analysis", func(t *testing.T) {
		f, _, _, state := newTestFlow(t)
		state.SetAnalysis(&models.Analysis{Meal: "Stale"})

		path := writePhoto(t)
		capturedAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
		require.NoError(t, f.StartCapture(path, &capturedAt))

		capture := state.Capture()
		require.NotNil(t, capture)
		assert.Equal(t, path, capture.FilePath)
		assert.Equal(t, &capturedAt, capture.CapturedAt)
		assert.Nil(t, state.Analysis())
	})

	t.Run("missing photo is an error", func(t *testing.T) {
		f, _, _, _ := newTestFlow(t)
		assert.Error(t, f.StartCapture("/nonexistent/lunch.jpg", nil))
	})

	t.Run("directory is an error", func(t *testing.T) {
		f, _, _, _ := newTestFlow(t)
		assert.Error(t, f.StartCapture(t.TempDir(), nil))
	})
}

func TestProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a capture in progress", func(t *testing.T) {
		f, _, _, _ := newTestFlow(t)
		_, err := f.Process(ctx)
		assert.Error(t, err)
	})

	t.Run("stores the normalized analysis", func(t *testing.T) {
		f, api, _, state := newTestFlow(t)
		api.prediction = testutil.TestPrediction("pasta", 420)

		path := writePhoto(t)
		require.NoError(t, f.StartCapture(path, nil))

		analysis, err := f.Process(ctx)
		require.NoError(t, err)
		assert.Equal(t, "pasta", analysis.Meal)
		assert.Equal(t, []string{"rice", "chicken"}, analysis.Ingredients)
		require.NotNil(t, analysis.Calories)
		assert.Equal(t, float64(420), *analysis.Calories)
		assert.Equal(t, analysis, state.Analysis())
		assert.Equal(t, "lunch.jpg", api.lastFilename)
	})

	t.Run("forwards the capture date to the backend", func(t *testing.T) {
		f, api, _, _ := newTestFlow(t)

		when := testutil.TimePtr(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
		require.NoError(t, f.StartCapture(writePhoto(t), when))

		_, err := f.Process(ctx)
		require.NoError(t, err)
		require.NotNil(t, api.lastOpts.CapturedAt)
		assert.Equal(t, *when, *api.lastOpts.CapturedAt)
	})

	t.Run("prediction failure clears the whole flow", func(t *testing.T) {
		f, api, _, state := newTestFlow(t)
		api.predictErr = &gateway.APIError{StatusCode: 502, Message: "model unavailable"}

		require.NoError(t, f.StartCapture(writePhoto(t), nil))

		_, err := f.Process(ctx)
		require.Error(t, err)
		assert.Nil(t, state.Capture())
		assert.Nil(t, state.Analysis())
	})
}

func TestSaveResult(t *testing.T) {
	ctx := context.Background()

	t.Run("requires an analysis", func(t *testing.T) {
		f, _, _, _ := newTestFlow(t)
		assert.Error(t, f.SaveResult(ctx))
	})

	t.Run("refreshes the history and resets the flow", func(t *testing.T) {
		f, _, _, state := newTestFlow(t)

		require.NoError(t, f.StartCapture(writePhoto(t), nil))
		_, err := f.Process(ctx)
		require.NoError(t, err)

		require.NoError(t, f.SaveResult(ctx))
		assert.Nil(t, state.Capture())
		assert.Nil(t, state.Analysis())
		assert.Len(t, state.Meals(), 1)
	})

	t.Run("refresh failure propagates and keeps the result visible", func(t *testing.T) {
		f, api, _, state := newTestFlow(t)

		require.NoError(t, f.StartCapture(writePhoto(t), nil))
		_, err := f.Process(ctx)
		require.NoError(t, err)

		api.mu.Lock()
		api.historyErr = errors.New("history unavailable")
		api.mu.Unlock()

		require.Error(t, f.SaveResult(ctx))
		assert.NotNil(t, state.Analysis())
	})
}

func TestCancelResult(t *testing.T) {
	f, _, _, state := newTestFlow(t)

	require.NoError(t, f.StartCapture(writePhoto(t), nil))
	_, err := f.Process(context.Background())
	require.NoError(t, err)

	f.CancelResult()
	assert.Nil(t, state.Capture())
	assert.Nil(t, state.Analysis())
}

func TestNormalizeAnalysis(t *testing.T) {
	t.Run("meal name falls back to food then a generic label", func(t *testing.T) {
		capture := &models.Capture{}

		assert.Equal(t, "Pasta", flow.NormalizeAnalysis(&models.PredictResponse{Meal: "Pasta", Food: "ignored"}, capture).Meal)
		assert.Equal(t, "Soup", flow.NormalizeAnalysis(&models.PredictResponse{Food: "Soup"}, capture).Meal)
		assert.Equal(t, "Logged Meal", flow.NormalizeAnalysis(&models.PredictResponse{}, capture).Meal)
	})

	t.Run("calories fall back to nutrition facts", func(t *testing.T) {
		capture := &models.Capture{}

		top := flow.NormalizeAnalysis(&models.PredictResponse{
			Calories:       testutil.FloatPtr(420),
			NutritionFacts: &models.NutritionFacts{Calories: testutil.FloatPtr(999)},
		}, capture)
		require.NotNil(t, top.Calories)
		assert.Equal(t, float64(420), *top.Calories)

		nested := flow.NormalizeAnalysis(&models.PredictResponse{
			NutritionFacts: &models.NutritionFacts{Calories: testutil.FloatPtr(350)},
		}, capture)
		require.NotNil(t, nested.Calories)
		assert.Equal(t, float64(350), *nested.Calories)

		assert.Nil(t, flow.NormalizeAnalysis(&models.PredictResponse{}, capture).Calories)
	})

	t.Run("image prefers image_url over image", func(t *testing.T) {
		capture := &models.Capture{}

		assert.Equal(t, "/a.png", flow.NormalizeAnalysis(&models.PredictResponse{ImageURL: "/a.png", Image: "/b.png"}, capture).Image)
		assert.Equal(t, "/b.png", flow.NormalizeAnalysis(&models.PredictResponse{Image: "/b.png"}, capture).Image)
	})

	t.Run("classifier output prefers predictions over hf_predictions", func(t *testing.T) {
		capture := &models.Capture{}

		primary := []models.Prediction{{Label: "pasta", Score: 0.9}}
		fallback := []models.Prediction{{Label: "noodles", Score: 0.4}}

		assert.Equal(t, primary, flow.NormalizeAnalysis(&models.PredictResponse{Predictions: primary, HFPredictions: fallback}, capture).Predictions)
		assert.Equal(t, fallback, flow.NormalizeAnalysis(&models.PredictResponse{HFPredictions: fallback}, capture).Predictions)
	})

	t.Run("capture date wins over backend dates", func(t *testing.T) {
		capturedAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
		capture := &models.Capture{CapturedAt: &capturedAt}

		analysis := flow.NormalizeAnalysis(&models.PredictResponse{ConsumedAt: "2024-01-01T08:00:00Z"}, capture)
		require.NotNil(t, analysis.CapturedAt)
		assert.Equal(t, capturedAt, *analysis.CapturedAt)
	})

	t.Run("falls back to backend dates in order", func(t *testing.T) {
		capture := &models.Capture{}

		fromConsumed := flow.NormalizeAnalysis(&models.PredictResponse{
			ConsumedAt: "2024-01-01T08:00:00Z",
			Timestamp:  "2024-02-01T08:00:00Z",
		}, capture)
		require.NotNil(t, fromConsumed.CapturedAt)
		assert.Equal(t, time.January, fromConsumed.CapturedAt.Month())

		fromMetadata := flow.NormalizeAnalysis(&models.PredictResponse{
			Metadata: &models.MealMetadata{MealDate: "2024-05-01"},
		}, capture)
		require.NotNil(t, fromMetadata.CapturedAt)
		assert.Equal(t, time.May, fromMetadata.CapturedAt.Month())

		assert.Nil(t, flow.NormalizeAnalysis(&models.PredictResponse{}, capture).CapturedAt)
	})

	t.Run("missing ingredients become an empty list", func(t *testing.T) {
		analysis := flow.NormalizeAnalysis(&models.PredictResponse{}, &models.Capture{})
		assert.NotNil(t, analysis.Ingredients)
		assert.Empty(t, analysis.Ingredients)
	})
}
