package apps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/h2hsecure/moodlews/internal/adapter"
	"github.com/h2hsecure/moodlews/internal/domain"
)

const (
	AppDescription = `This is a Moodle web service client. Here is the options:
	- login / logout: fetch a token and keep it in the local credential store
	- user, users, register, register-ldap, enrolled, user-courses: site users
	- courses, course, categories: courses and course categories
	- enrol, selfenrol: enrolments
	- grades, grades-emails, gradecategories, gradecategory: grade book
	- watch: keep a grade report snapshot file up to date
	- uad: site specific grade report and self enrolment functions
	- call: any web service function by name`
)

var (
	// Set from persistent flags in main.
	ConfigPath string
	Server     string
	Token      string
)

type env struct {
	cfg      *domain.Config
	moodle   *adapter.MoodleAdapter
	registry *prometheus.Registry
}

func newEnv() *env {
	cfg := domain.LoadConfig(ConfigPath)

	if Server != "" {
		cfg.Moodle.Server = Server
	}
	if Token != "" {
		cfg.Moodle.Token = Token
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	registry := prometheus.NewRegistry()
	metrics := adapter.NewMetrics(
		adapter.WithRegistry(registry),
		adapter.WithNamespace(cfg.MetricsNamespace),
		adapter.WithHistogramBuckets(cfg.MetricsBuckets),
	)

	return &env{
		cfg:      cfg,
		moodle:   adapter.NewMoodleAdapter(cfg, adapter.WithMetrics(metrics)),
		registry: registry,
	}
}

// service builds the facade for the configured server. Without a configured
// token the one saved by login is used.
func (e *env) service(ctx context.Context) (domain.IService, error) {
	cred := domain.Credential{Server: e.cfg.Moodle.Server, Token: e.cfg.Moodle.Token}

	if cred.Server == "" {
		return nil, errors.New("no server configured: set moodle.server, MOODLE_SERVER or --server")
	}

	if cred.Token == "" {
		stored, err := e.storedCredential(ctx, cred.Server)
		if err != nil {
			return nil, fmt.Errorf("no token for %s, run login first: %w", cred.Server, err)
		}
		cred.Token = stored.Token
		cred.Username = stored.Username
	}

	return domain.NewService(cred, e.moodle), nil
}

func (e *env) storedCredential(ctx context.Context, server string) (domain.Credential, error) {
	if _, err := os.Stat(e.cfg.StorePath); err != nil {
		return domain.Credential{}, fmt.Errorf("credential store: %w", domain.ErrNotFound)
	}

	store, err := adapter.NewBoltDB(e.cfg.StorePath, true)
	if err != nil {
		return domain.Credential{}, err
	}

	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msgf("db close")
		}
	}()

	return store.ReadToken(ctx, server)
}

func (e *env) close() {
	if e.cfg.MetricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(e.cfg.MetricsFile, e.registry); err != nil {
		log.Warn().Err(err).Str("file", e.cfg.MetricsFile).Msg("write metrics")
	}
}

// run executes fn with a fresh environment and exits non-zero on failure.
func run(fn func(ctx context.Context, e *env) error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)

	e := newEnv()
	err := fn(ctx, e)
	e.close()
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}

// withService is run for commands that only need the facade.
func withService(fn func(ctx context.Context, svc domain.IService) (any, error)) {
	run(func(ctx context.Context, e *env) error {
		svc, err := e.service(ctx)
		if err != nil {
			return err
		}

		out, err := fn(ctx, svc)
		if err != nil {
			return err
		}

		return printJSON(out)
	})
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(b))
	return err
}

func parseID(name, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, arg, err)
	}
	return id, nil
}

// parseFields reads key=value arguments into object members.
func parseFields(args []string) ([]domain.Member, error) {
	members := make([]domain.Member, 0, len(args))

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		members = append(members, domain.M(key, domain.String(value)))
	}

	return members, nil
}
