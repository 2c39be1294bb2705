package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/assessor/internal/analysis"
	"github.com/pavelanni/assessor/internal/export"
	"github.com/pavelanni/assessor/internal/handler"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/metrics"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/review"
	"github.com/pavelanni/assessor/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "assessor",
		Short: "Assessment scoring and grading service",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd(), usersCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `assessor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "assessor.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSlice("assessments", []string{"assessments/sample.json"}, "Assessment JSON files to import at startup (repeatable)")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.Duration("latency", 0, "Simulated storage latency for assessment and result calls")
	f.String("analysis-provider", "", "Analysis backend (builtin, openai, anthropic, gemini, mock); empty disables analysis")
	f.String("analysis-key", "", "API key for the analysis provider")
	f.String("analysis-model", "", "Model name for the analysis provider (provider default if empty)")
	f.String("analysis-url", "", "OpenAI-compatible API base URL (e.g. http://localhost:11434/v1)")
	f.Float64("analysis-temperature", 0.7, "Default sampling temperature for analysis")
	f.Duration("analysis-timeout", 2*time.Minute, "Upper bound for a single analysis run")
	f.String("prompt-variant", string(prompts.PromptStandard), "Analysis prompt variant (strict, standard, lenient)")
	f.String("admin-password", "", "Initial admin password (or set ASSESSOR_ADMIN_PASSWORD)")
	addCommonFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import assessments from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.Bool("force", false, "Re-import files whose content changed since the last import")
	f.String("created-by", "admin", "Author recorded on imported assessments without one")
	addCommonFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an assessment or its results",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("assessment-id", "", "Assessment to export (required)")
	f.String("kind", "results", "What to export (results, assessment)")
	f.String("format", "json", "Output format (json, csv); assessments are CSV only")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addCommonFlags(cmd)

	_ = cmd.MarkFlagRequired("assessment-id")

	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE:  runUsersList,
	}
	addCommonFlags(list)

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE:  runUsersAdd,
	}
	f := add.Flags()
	f.String("username", "", "Login name (required)")
	f.String("password", "", "Password (required)")
	f.String("display-name", "", "Display name (defaults to username)")
	f.String("email", "", "Email address")
	f.String("role", string(model.UserRoleTestTaker), "Role (admin, reviewer, creator, test-taker)")
	addCommonFlags(add)
	_ = add.MarkFlagRequired("username")
	_ = add.MarkFlagRequired("password")

	cmd.AddCommand(list, add)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ASSESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("assessor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/assessor")
	v.AddConfigPath("/etc/assessor")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := db.CleanupExpiredSessions(ctx); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}

	if err := loadAssessments(ctx, db, v.GetStringSlice("assessments"), "admin", false); err != nil {
		return fmt.Errorf("load assessments: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	if err := prompts.Load(nil); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	metrics.Init()

	analyzer, err := newAnalyzer(ctx, v)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	repo := store.WithLatency(db, v.GetDuration("latency"))
	svc := review.NewService(repo, analysis.NewCoordinator(analyzer, v.GetDuration("analysis-timeout")))
	h := handler.New(db, repo, svc)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(appI18n.Middleware())
	r.Handle("/metrics", metrics.Handler())
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"analysis_provider", v.GetString("analysis-provider"),
		"analysis_enabled", svc.AnalysisEnabled(),
		"latency", v.GetDuration("latency"),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// newAnalyzer builds the analysis backend selected by analysis-provider.
// An empty provider returns nil, which disables analysis.
func newAnalyzer(ctx context.Context, v *viper.Viper) (analysis.Analyzer, error) {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("analysis-provider")))

	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.PromptStandard)
	}
	temperature := v.GetFloat64("analysis-temperature")

	switch provider {
	case "":
		slog.Info("analysis disabled; results must be graded manually")
		return nil, nil
	case "builtin":
		return analysis.Builtin{}, nil
	case llm.ProviderMock:
		cfg := llm.DefaultConfig(llm.ProviderMock)
		m := llm.NewMockProvider()
		m.Fallback = analysis.MockFallback
		return analysis.NewLLMAnalyzer(llm.WithRetry(llm.WithLogging(m), cfg.Retry), prompts.PromptVariant(variant), temperature), nil
	}

	cfg := llm.DefaultConfig(provider)
	cfg.APIKey = v.GetString("analysis-key")
	cfg.BaseURL = v.GetString("analysis-url")
	if m := v.GetString("analysis-model"); m != "" {
		cfg.Model = m
	}

	p, err := llm.NewProvider(ctx, cfg)
	if errors.Is(err, llm.ErrNoCredentials) {
		// The server still runs; analysis requests report the backend as
		// unavailable and reviewers grade manually.
		slog.Warn("analysis provider has no credentials; analysis disabled", "provider", provider)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slog.Info("analysis provider ready", "provider", provider, "model", p.ModelID(), "variant", variant)
	return analysis.NewLLMAnalyzer(p, prompts.PromptVariant(variant), temperature), nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return loadAssessments(cmd.Context(), db, args, v.GetString("created-by"), v.GetBool("force"))
}

func loadAssessments(ctx context.Context, db *store.Store, paths []string, createdBy string, force bool) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("assessment file not found, skipping", "path", path)
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rep, err := db.ImportAssessments(ctx, path, data, createdBy, force)
		if err != nil {
			return err
		}
		if rep.Skipped && rep.Reason == "changed" {
			slog.Warn("re-run import with --force to replace assessments from a changed file", "path", path)
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	a, err := db.GetAssessment(ctx, v.GetString("assessment-id"))
	if err != nil {
		return fmt.Errorf("load assessment: %w", err)
	}

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	kind, format := v.GetString("kind"), strings.ToLower(v.GetString("format"))
	switch kind {
	case "assessment":
		return export.WriteCSV(w, export.AssessmentTable(a))
	case "results":
	default:
		return fmt.Errorf("unknown export kind %q", kind)
	}

	results, err := db.ListResultsByAssessment(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}
	e, err := export.BuildResultsExport(a, results, time.Now())
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}

	switch format {
	case "csv":
		return export.WriteCSV(w, export.ResultsTable(e))
	case "json":
		return export.WriteJSON(w, e)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Error("close output file", "path", path, "error", err)
		}
	}, nil
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	users, err := db.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tROLE\tACTIVE\tEMAIL")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", u.ID, u.Username, u.Role, u.Active, u.Email)
	}
	return tw.Flush()
}

func runUsersAdd(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	role := model.UserRole(v.GetString("role"))
	if !model.ValidUserRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(v.GetString("password")), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	username := v.GetString("username")
	displayName := v.GetString("display-name")
	if displayName == "" {
		displayName = username
	}
	id, err := db.CreateUser(cmd.Context(), model.User{
		Username:     username,
		DisplayName:  displayName,
		Email:        v.GetString("email"),
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, role %s)\n", username, id, role)
	return nil
}

func seedAdmin(ctx context.Context, db *store.Store, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or ASSESSOR_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(ctx, model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
