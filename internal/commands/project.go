package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/atolabels"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/classifier"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/config"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/logger"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/rules"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/runlog"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/store"
)

// Project layout written by `taxprep init`.
const (
	rulesFile = "rules.yaml"
	envFile   = ".env"
	outputDir = "output"
)

type globalOptions struct {
	dir        string
	configPath string // default <dir>/taxprep.yaml
	intelDB    string // overrides enrichment.cache_db
	runLog     string // default <dir>/logs/taxprep-runs.csv
	logLevel   string
}

// project is a loaded project directory.
type project struct {
	dir       string
	cfg       *config.Config
	rules     *rules.Set
	rulesPath string // empty means the built-in tables
	labels    *atolabels.Service
	runLog    string
	log       zerolog.Logger
}

func loadProject(opts *globalOptions) (*project, error) {
	dir, err := filepath.Abs(opts.dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfgPath := filepath.Join(dir, config.FileName)
	if opts.configPath != "" {
		cfgPath = opts.configPath
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, filepath.Join(dir, envFile)); err != nil {
		return nil, err
	}
	if opts.intelDB != "" {
		if cfg.Enrichment.CacheDB, err = filepath.Abs(opts.intelDB); err != nil {
			return nil, fmt.Errorf("resolving intel db path: %w", err)
		}
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	set := rules.Default()
	rulesPath := ""
	if cfg.RulesPath != "" {
		// rules_path is relative to the config file.
		base, err := filepath.Abs(filepath.Dir(cfgPath))
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		rulesPath = resolve(base, cfg.RulesPath)
		if set, err = rules.Load(rulesPath); err != nil {
			return nil, err
		}
	}

	labels, err := atolabels.LoadOrDefault(dir)
	if err != nil {
		return nil, err
	}
	if problems := rules.Validate(set, labels); len(problems) > 0 {
		return nil, fmt.Errorf("invalid rules: %w", joinValidation(problems))
	}

	runLog := filepath.Join(dir, runlog.DefaultPath)
	if opts.runLog != "" {
		runLog = opts.runLog
	}

	return &project{
		dir:       dir,
		cfg:       cfg,
		rules:     set,
		rulesPath: rulesPath,
		labels:    labels,
		runLog:    runLog,
		log:       logger.New(os.Stderr, cfg.LogLevel),
	}, nil
}

func (p *project) context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithContext(ctx, p.log)
}

func (p *project) path(rel string) string {
	return resolve(p.dir, rel)
}

func (p *project) runLogPath() string {
	return p.runLog
}

// openStore opens the intel cache database.
func (p *project) openStore() (*store.Store, error) {
	return store.Open(p.path(p.cfg.Enrichment.CacheDB))
}

// loadIntel reads persisted intel. A missing database yields none.
func (p *project) loadIntel(ctx context.Context) (classifier.IntelMap, error) {
	path := p.path(p.cfg.Enrichment.CacheDB)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	items, err := st.All(ctx)
	if err != nil {
		return nil, err
	}
	intel := make(classifier.IntelMap, len(items))
	for _, it := range items {
		intel[it.LookupKey] = it
	}
	return intel, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func joinValidation(problems []rules.ValidationError) error {
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Error()
	}
	return errors.New(strings.Join(msgs, "; "))
}
