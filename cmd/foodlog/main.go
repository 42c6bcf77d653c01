// Command foodlog is the FoodLog client: it captures meal photos, sends
// them to the prediction backend, shows nutrition results, and renders
// calorie history. Session state is kept in durable storage so separate
// invocations (and separate processes sharing a Redis backend) observe
// the same login.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/bus"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/coordinator"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/dashboard"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/flow"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/gateway"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/models"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/session"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/status"
	"github.com/dorsakh/Food-Log-FrontEnd/internal/storage"
	"github.com/dorsakh/Food-Log-FrontEnd/pkg/config"
)

// app holds everything a command needs, assembled once per invocation.
type app struct {
	cfg      *config.Config
	store    storage.Store
	sessions *session.Store
	client   *gateway.Client
	state    *coordinator.Coordinator
	flows    *flow.Flow

	cancelRemote context.CancelFunc
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	events := bus.New()
	sessions := session.New(store, events)
	client := gateway.New(cfg.API, sessions)
	state := coordinator.New(client, sessions, events)

	remoteCtx, cancelRemote := context.WithCancel(context.Background())
	go sessions.ListenRemote(remoteCtx)

	return &app{
		cfg:          cfg,
		store:        store,
		sessions:     sessions,
		client:       client,
		state:        state,
		flows:        flow.New(client, sessions, state),
		cancelRemote: cancelRemote,
	}, nil
}

func openStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendRedis:
		return storage.NewRedisStore(&cfg.Storage.Redis)
	default:
		return storage.NewFileStore(cfg.Storage.File.Path)
	}
}

func (a *app) close() {
	a.cancelRemote()
	a.state.Close()
	if err := a.store.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to close storage")
	}
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "foodlog",
		Short:         "Log meals by photo and track calorie history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLoginCmd(),
		newSignupCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newLogCmd(),
		newHistoryCmd(),
		newDashboardCmd(),
		newHealthCmd(),
		newServeCmd(),
	)

	return root
}

// withApp assembles the application, runs fn, and tears everything down.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), a, args)
	}
}

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			user, err := a.flows.Login(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", user.Email)
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

func newSignupCmd() *cobra.Command {
	var email, password, confirm string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and store the session",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			user, err := a.flows.SignUp(ctx, email, password, confirm)
			if err != nil {
				return err
			}
			fmt.Printf("Account created for %s\n", user.Email)
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "password confirmation")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("confirm-password")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.flows.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		}),
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if !a.sessions.IsAuthenticated(ctx) {
				fmt.Println("Not signed in")
				return nil
			}

			if user := a.sessions.User(ctx); user != nil {
				fmt.Printf("Email:    %s\n", user.Email)
				fmt.Printf("Provider: %s\n", user.Provider)
				if user.ID != "" {
					fmt.Printf("User ID:  %s\n", user.ID)
				}
			}

			token, err := a.sessions.Token(ctx)
			if err != nil {
				return err
			}
			if claims, err := session.InspectToken(token); err == nil {
				if remaining := claims.ExpiresIn(time.Now()); remaining > 0 {
					fmt.Printf("Token:    expires in %s\n", remaining.Round(time.Minute))
				} else if claims.ExpiresAt != nil {
					fmt.Println("Token:    expired")
				}
			}
			return nil
		}),
	}
}

func newLogCmd() *cobra.Command {
	var capturedAt string

	cmd := &cobra.Command{
		Use:   "log <photo>",
		Short: "Analyze a meal photo and save it to your history",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			photo := args[0]

			var when *time.Time
			if capturedAt != "" {
				parsed, ok := dashboard.ParseMealDate(capturedAt)
				if !ok {
					return fmt.Errorf("unrecognized date %q", capturedAt)
				}
				when = &parsed
			}

			if err := a.flows.StartCapture(photo, when); err != nil {
				return err
			}

			fmt.Println("Analyzing your meal...")
			analysis, err := a.flows.Process(ctx)
			if err != nil {
				return err
			}

			printAnalysis(a, analysis)

			if err := a.flows.SaveResult(ctx); err != nil {
				return fmt.Errorf("unable to save this meal right now: %w", err)
			}
			fmt.Println("Saved.")
			return nil
		}),
	}

	cmd.Flags().StringVar(&capturedAt, "captured-at", "", "when the meal was eaten (e.g. 2024-01-15 or RFC3339)")

	return cmd
}

func printAnalysis(a *app, analysis *models.Analysis) {
	fmt.Printf("\nDetected meal: %s\n", analysis.Meal)
	if analysis.Calories != nil {
		fmt.Printf("Calories:      %.0f kcal\n", *analysis.Calories)
	}
	if len(analysis.Ingredients) > 0 {
		fmt.Printf("Ingredients:   %s\n", strings.Join(analysis.Ingredients, ", "))
	}
	if analysis.PreviewPath != "" {
		fmt.Printf("Image:         %s\n", analysis.PreviewPath)
	} else if analysis.Image != "" {
		fmt.Printf("Image:         %s\n", a.client.ResolveBackendImage(analysis.Image))
	}
	if len(analysis.Predictions) > 0 {
		fmt.Println("Predictions:")
		for i, prediction := range analysis.Predictions {
			label := prediction.Label
			if label == "" {
				label = "Unknown"
			}
			fmt.Printf("  %d. %-24s %.1f%%\n", i+1, label, prediction.DisplayScore())
		}
	}
	fmt.Println()
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your logged meals",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			records, err := a.state.RefreshMeals(ctx)
			if err != nil {
				return err
			}

			entries := dashboard.Normalize(records)
			if len(entries) == 0 {
				fmt.Println("No meals logged yet.")
				return nil
			}

			for _, entry := range entries {
				fmt.Printf("%-14s %-30s %6.0f kcal\n", dashboard.FormatMealDate(entry.Date), entry.Name, entry.Calories)
			}
			return nil
		}),
	}
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show calorie chart and summary",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			records, err := a.state.RefreshMeals(ctx)
			if err != nil {
				return err
			}

			entries := dashboard.Normalize(records)
			chart := dashboard.Chart(entries)
			summary := dashboard.Summarize(entries)

			if len(chart.Series) == 0 {
				fmt.Println("Log your first meal to see the chart.")
				return nil
			}

			var peak float64
			for _, value := range chart.Series {
				if value > peak {
					peak = value
				}
			}

			fmt.Println("Calorie Tracker")
			for i, category := range chart.Categories {
				width := 0
				if peak > 0 {
					width = int(chart.Series[i] / peak * 40)
				}
				fmt.Printf("%-14s %s %.0f kcal\n", category, strings.Repeat("#", width), chart.Series[i])
			}

			fmt.Printf("\nMeals logged:      %d\n", summary.TotalMeals)
			fmt.Printf("Total calories:    %.0f kcal\n", summary.TotalCalories)
			fmt.Printf("Avg meal calories: %d kcal\n", summary.AverageCalories)
			if summary.LatestMeal != nil {
				fmt.Printf("Latest meal:       %s (%s)\n", summary.LatestMeal.Name, dashboard.FormatMealDate(summary.LatestMeal.Date))
			}
			return nil
		}),
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the backend's health endpoint",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			result, err := a.client.PerformHealthCheck(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Backend %s is up: %v\n", a.client.BaseURL(), result)
			return nil
		}),
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local status listener (/healthz, /metrics)",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			handler := status.NewHandler(a.client, a.store)
			return status.Serve(ctx, a.cfg.Status.Addr, handler)
		}),
	}
}
