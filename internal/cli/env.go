package cli

import (
	"context"

	"github.com/goliatone/go-logger/glog"

	"github.com/roach88/taskq/internal/auth"
	"github.com/roach88/taskq/internal/config"
	"github.com/roach88/taskq/internal/logging"
	"github.com/roach88/taskq/internal/queue"
	"github.com/roach88/taskq/internal/registry"
	"github.com/roach88/taskq/internal/store"
)

// env is the wiring shared by commands that touch the store.
type env struct {
	cfg     config.Config
	logger  *glog.BaseLogger
	store   store.Store
	clients *auth.Clients
	service *queue.Service
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Verbose && cfg.LogLevel != "trace" {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// openEnv loads configuration and opens the configured store. The caller
// must close the returned env.
func openEnv(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.failWith(ErrCodeConfig, "failed to load config", err)
	}

	logger, err := logging.New("taskq", cfg.LogLevel)
	if err != nil {
		return nil, f.failWith(ErrCodeConfig, "failed to create logger", err)
	}

	var evaluator *auth.Evaluator
	var clients *auth.Clients
	if cfg.Auth.Enabled {
		evaluator = auth.NewEvaluator()
		clients, err = auth.NewClients(cfg.Auth.Clients)
		if err != nil {
			return nil, f.failWith(ErrCodeConfig, "invalid clients", err)
		}
	} else {
		evaluator = auth.NewEvaluator(auth.WithAllowAll())
	}

	f.VerboseLog("opening %s store", cfg.Store.Driver)
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.Address())
	if err != nil {
		return nil, f.failWith(ErrCodeStore, "failed to open store", err)
	}

	reg := registry.New(st, logger.GetLogger("registry"))
	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		clients: clients,
		service: queue.New(reg, evaluator, logger.GetLogger("queue")),
	}, nil
}

// warnEphemeral tells one-shot commands that a memory store does not
// outlive the process.
func (e *env) warnEphemeral(f *OutputFormatter) {
	if e.cfg.Store.Driver == store.DriverMemory {
		f.Warn("store driver is %q; tasks are lost when this command exits, set store.driver to sqlite3 to keep them", store.DriverMemory)
	}
}

func (e *env) Close() error {
	return e.store.Close()
}

// credentials resolves token against the configured clients. An empty
// token, or any token when auth is disabled, is the anonymous caller.
func (e *env) credentials(token string) (auth.Credentials, bool) {
	if token == "" || e.clients == nil {
		return auth.Credentials{ClientID: auth.Anonymous}, true
	}
	return e.clients.Lookup(token)
}
