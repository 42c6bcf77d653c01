// Package flow implements the user-facing flows over the coordinator and
// the gateway: authentication (login, signup, logout) and the
// capture→processing→result pipeline for logging a meal. The CLI stays a
// thin shell around this package.
package flow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/coordinator"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/dashboard"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/gateway"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/models"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/session"
)

// API is the slice of the gateway the flows need.
type API interface {
	Login(ctx context.Context, credentials gateway.Credentials) (*gateway.AuthResponse, error)
	SignUp(ctx context.Context, payload gateway.SignUpRequest) (*gateway.AuthResponse, error)
	FetchCurrentUser(ctx context.Context) (*models.AuthUser, error)
	PredictMeal(ctx context.Context, photo []byte, filename string, opts gateway.PredictOptions) (*models.PredictResponse, error)
}

// SessionWriter is the slice of the session store the flows need.
type SessionWriter interface {
	SaveSession(ctx context.Context, in session.Input) error
	ClearSession(ctx context.Context) error
}

// Flow wires the gateway, the session store, and the coordinator into
// the user-facing operations.
type Flow struct {
	api      API
	sessions SessionWriter
	state    *coordinator.Coordinator
}

// New creates the flow layer.
func New(api API, sessions SessionWriter, state *coordinator.Coordinator) *Flow {
	return &Flow{
		api:      api,
		sessions: sessions,
		state:    state,
	}
}

// Login authenticates with the backend and persists the resulting
// session. When the auth response carries no user record, /auth/me is
// consulted to backfill it; a failure there is logged and ignored, the
// session is already usable.
//
// The saved session triggers the reactive history refresh; an additional
// explicit refresh is kicked off so the history is warm even if the
// reactive path loses a race, and its failure is swallowed the same way.
func (f *Flow) Login(ctx context.Context, email, password string) (*models.SessionUser, error) {
	email = strings.TrimSpace(email)

	response, err := f.api.Login(ctx, gateway.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if response.Token == "" {
		return nil, errors.New("login succeeded but no token was returned")
	}

	user := response.User
	if user == nil {
		if fetched, err := f.api.FetchCurrentUser(ctx); err == nil {
			user = fetched
		} else {
			log.Warn().Err(err).Msg("Unable to backfill user record after login")
		}
	}

	in := session.Input{Token: response.Token, Provider: "password"}
	if user != nil {
		in.Email = user.Email
		in.UserID = user.ResolveID()
	}
	if in.Email == "" {
		in.Email = email
	}
	if err := f.sessions.SaveSession(ctx, in); err != nil {
		return nil, err
	}

	if _, err := f.state.RefreshMeals(ctx); err != nil {
		log.Warn().Err(err).Msg("Post-login history refresh failed")
	}

	return &models.SessionUser{Email: in.Email, Provider: in.Provider, ID: in.UserID}, nil
}

// SignUp registers a new account, persists the session from the signup
// response, and warms the history cache. The confirmation password must
// match before anything is sent.
func (f *Flow) SignUp(ctx context.Context, email, password, confirmPassword string) (*models.SessionUser, error) {
	if password != confirmPassword {
		return nil, errors.New("passwords do not match")
	}
	email = strings.TrimSpace(email)

	response, err := f.api.SignUp(ctx, gateway.SignUpRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	resolvedEmail := email
	var userID string
	if response.User != nil {
		if response.User.Email != "" {
			resolvedEmail = response.User.Email
		}
		userID = response.User.ResolveID()
	}

	if err := f.sessions.SaveSession(ctx, session.Input{
		Token:    response.Token,
		Email:    resolvedEmail,
		Provider: "password",
		UserID:   userID,
	}); err != nil {
		return nil, err
	}

	if _, err := f.state.RefreshMeals(ctx); err != nil {
		log.Warn().Err(err).Msg("Post-signup history refresh failed")
	}

	return &models.SessionUser{Email: resolvedEmail, Provider: "password", ID: userID}, nil
}

// Logout clears the session; the broadcast empties the history cache.
func (f *Flow) Logout(ctx context.Context) error {
	return f.sessions.ClearSession(ctx)
}

// StartCapture begins a capture flow for the photo at path. Any previous
// analysis is discarded.
func (f *Flow) StartCapture(path string, capturedAt *time.Time) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read photo: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot read photo: %s is a directory", path)
	}

	f.state.SetCapture(&models.Capture{
		FilePath:   path,
		CapturedAt: capturedAt,
	})
	f.state.SetAnalysis(nil)
	return nil
}

// Process sends the in-progress capture to the prediction backend and
// stores the normalized analysis. On any failure the whole flow is
// cleared, matching the processing screen's bail-out-to-dashboard
// behavior, and the error is returned for display.
func (f *Flow) Process(ctx context.Context) (*models.Analysis, error) {
	capture := f.state.Capture()
	if capture == nil || capture.FilePath == "" {
		return nil, errors.New("no capture in progress")
	}

	photo, err := os.ReadFile(capture.FilePath)
	if err != nil {
		f.state.ResetFlow()
		return nil, fmt.Errorf("cannot read photo: %w", err)
	}

	prediction, err := f.api.PredictMeal(ctx, photo, filepath.Base(capture.FilePath), gateway.PredictOptions{
		CapturedAt: capture.CapturedAt,
	})
	if err != nil {
		f.state.ResetFlow()
		return nil, err
	}

	analysis := NormalizeAnalysis(prediction, capture)
	f.state.SetAnalysis(analysis)
	return analysis, nil
}

// SaveResult accepts the current analysis: the history cache is refreshed
// explicitly and the flow is reset. A refresh failure propagates to the
// caller so it can be shown inline instead of silently dismissing the
// result.
func (f *Flow) SaveResult(ctx context.Context) error {
	if f.state.Analysis() == nil {
		return errors.New("no analysis to save")
	}

	if _, err := f.state.RefreshMeals(ctx); err != nil {
		return err
	}

	f.state.ResetFlow()
	return nil
}

// CancelResult dismisses the current result without saving.
func (f *Flow) CancelResult() {
	f.state.ResetFlow()
}

// NormalizeAnalysis folds the prediction response's field variants into
// one Analysis. Name prefers meal over food, calories prefer the
// top-level field over nutrition_facts, the image prefers image_url over
// image, and the classifier output prefers predictions over
// hf_predictions. The capture date wins over any date the backend
// reports.
func NormalizeAnalysis(prediction *models.PredictResponse, capture *models.Capture) *models.Analysis {
	meal := prediction.Meal
	if meal == "" {
		meal = prediction.Food
	}
	if meal == "" {
		meal = "Logged Meal"
	}

	calories := prediction.Calories
	if calories == nil && prediction.NutritionFacts != nil {
		calories = prediction.NutritionFacts.Calories
	}

	image := prediction.ImageURL
	if image == "" {
		image = prediction.Image
	}

	predictions := prediction.Predictions
	if len(predictions) == 0 {
		predictions = prediction.HFPredictions
	}

	ingredients := prediction.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}

	capturedAt := capture.CapturedAt
	if capturedAt == nil {
		for _, raw := range []string{prediction.ConsumedAt, prediction.Timestamp, predictionMetaDate(prediction)} {
			if parsed, ok := dashboard.ParseMealDate(raw); ok {
				capturedAt = &parsed
				break
			}
		}
	}

	return &models.Analysis{
		Meal:        meal,
		Ingredients: ingredients,
		Calories:    calories,
		Image:       image,
		Predictions: predictions,
		PreviewPath: capture.PreviewPath,
		CapturedAt:  capturedAt,
	}
}

func predictionMetaDate(prediction *models.PredictResponse) string {
	if prediction.Metadata == nil {
		return ""
	}
	return prediction.Metadata.MealDate
}
