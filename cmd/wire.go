package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bnema/schoolday-cli/internal/adapters/api/rest"
	"github.com/bnema/schoolday-cli/internal/adapters/render/agenda"
	sqliterepo "github.com/bnema/schoolday-cli/internal/adapters/repo/sqlite"
	tomlrepo "github.com/bnema/schoolday-cli/internal/adapters/repo/toml"
	filestore "github.com/bnema/schoolday-cli/internal/adapters/secrets/file"
	"github.com/bnema/schoolday-cli/internal/application"
	"github.com/bnema/schoolday-cli/internal/config"
	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/logging"
	"github.com/bnema/schoolday-cli/internal/ports"
	"github.com/bnema/schoolday-cli/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type globalFlags struct {
	offline bool
	verbose bool
	force   bool
}

type app struct {
	cfg         config.Config
	v           *viper.Viper
	profileRepo *tomlrepo.ProfileRepository
	profiles    *application.ProfileService
	clock       ports.Clock
	logger      *zap.Logger
	flags       globalFlags
}

// session is the per-command view of the active profile: one engine, its
// services and the snapshot repository it persists to.
type session struct {
	profile      domain.Profile
	engine       *application.Engine
	appointments *application.AppointmentService
	homework     *application.HomeworkService
	grades       *application.GradeService
	messages     *application.MessageService
	sync         *application.SyncService
	contexts     *application.ContextService
	closeFn      func() error
}

func wireApp() (*app, error) {
	homeDir, err := config.HomeDir()
	if err != nil {
		return nil, err
	}

	v, err := config.New(homeDir)
	if err != nil {
		return nil, fmt.Errorf("wire config: %w", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("wire config: %w", err)
	}

	repo, err := tomlrepo.NewProfileRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire profile repository: %w", err)
	}

	secretStore := filestore.NewStore(cfg.SecretsPath)

	return &app{
		cfg:         cfg,
		v:           v,
		profileRepo: repo,
		profiles:    application.NewProfileService(repo, secretStore),
		clock:       ports.SystemClock{},
		logger:      zap.NewNop(),
	}, nil
}

func (a *app) setupLogger() error {
	level := a.cfg.LogLevel
	if a.flags.verbose {
		level = "debug"
	}

	logger, err := logging.New(level, a.cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	a.logger = logger

	return nil
}

func (a *app) openSnapshots() (ports.SnapshotRepository, func() error, error) {
	switch a.cfg.SnapshotBackend {
	case config.BackendSQLite:
		db, err := sqliterepo.OpenDB(a.cfg.SnapshotPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot database: %w", err)
		}
		return sqliterepo.NewSnapshotRepository(db), db.Close, nil
	default:
		repo, err := tomlrepo.NewSnapshotRepository(a.v)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot file: %w", err)
		}
		return repo, func() error { return nil }, nil
	}
}

// open activates the active profile in a fresh engine and restores its
// snapshot. A profile without a token still opens, so cached data stays
// readable.
func (a *app) open(ctx context.Context) (*session, error) {
	profile, err := a.profiles.Active(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveProfile) {
			return nil, fmt.Errorf("%w: run `sd profile add` first", err)
		}
		return nil, fmt.Errorf("load active profile: %w", err)
	}

	token, err := a.profiles.Token(ctx, profile)
	if err != nil {
		if !errors.Is(err, domain.ErrSecretNotFound) {
			return nil, err
		}
		a.logger.Debug("profile has no token", zap.String("profile", string(profile.ID)))
	}

	client, err := rest.NewClient(rest.Options{
		BaseURL:         profile.BaseURL,
		Token:           token,
		UserAgent:       "sd/" + version.Version,
		Timeout:         a.cfg.APITimeout,
		BreakerFailures: a.cfg.BreakerFailures,
		BreakerCooldown: a.cfg.BreakerCooldown,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire api client: %w", err)
	}

	snapshots, closeFn, err := a.openSnapshots()
	if err != nil {
		return nil, err
	}

	engine := application.NewEngine(a.clock, a.logger, a.cfg.Sync.DedupWindow)
	backend := application.Backend{
		Engine:       engine,
		Fetcher:      application.NewFetcher(client, a.logger, a.cfg.PageSize, a.cfg.MaxRequests),
		Connectivity: ports.StaticConnectivity(!a.flags.offline),
		Logger:       a.logger,
	}

	s := &session{
		profile:      profile,
		engine:       engine,
		appointments: application.NewAppointmentService(backend, a.cfg.Location, a.cfg.Sync.Appointments),
		homework:     application.NewHomeworkService(backend, a.cfg.Location, a.cfg.Sync.Homework),
		grades:       application.NewGradeService(backend, a.cfg.Sync.Grades),
		messages:     application.NewMessageService(backend, a.cfg.Sync.Messages),
		closeFn:      closeFn,
	}
	s.sync = application.NewSyncService(s.appointments, s.homework, s.grades, s.messages)
	s.contexts = application.NewContextService(engine, a.profileRepo, snapshots, s.appointments, s.homework, a.logger)

	if _, err := s.contexts.Activate(ctx, profile); err != nil {
		return nil, errors.Join(err, closeFn())
	}

	if a.flags.force {
		s.sync.Invalidate()
	}

	return s, nil
}

// withSession opens the active profile, runs fn and persists the session
// even when fn fails.
func (a *app) withSession(cmd *cobra.Command, fn func(context.Context, *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := a.open(ctx)
	if err != nil {
		return err
	}

	runErr := fn(ctx, s)
	persistErr := s.contexts.Persist(ctx)
	closeErr := s.closeFn()

	return errors.Join(runErr, persistErr, closeErr)
}

func (a *app) renderOptions() agenda.RenderOptions {
	return agenda.RenderOptions{
		Now:      a.clock.Now(),
		Location: a.cfg.Location,
		Offline:  a.flags.offline,
	}
}

// periodKey parses --week, defaulting to the current week.
func (a *app) periodKey(raw string) (domain.PeriodKey, error) {
	if raw == "" {
		return domain.PeriodKeyOf(a.clock.Now().In(a.cfg.Location)), nil
	}

	return domain.ParsePeriodKey(raw)
}

// refresh runs fetch behind a spinner unless output is JSON. Failures other
// than authorization fall back to cached data with a warning.
func (a *app) refresh(cmd *cobra.Command, asJSON bool, target fetchTarget, fetch func(context.Context) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	if asJSON || a.flags.offline {
		err = fetch(ctx)
	} else {
		err = runFetchSpinner(ctx, cmd.ErrOrStderr(), target, fetch)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.Warn("refresh failed", zap.Error(err))
	_, writeErr := fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; showing cached data\n", err)
	return writeErr
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeRendered(out io.Writer, rendered string, err error) error {
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, rendered)
	return err
}
