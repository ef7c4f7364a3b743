package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"moodle-sync/internal/config"
	"moodle-sync/internal/logging"
	"moodle-sync/internal/providers/moodle"
	"moodle-sync/internal/store"
)

// app carries the flags shared by all commands.
type app struct {
	configPath string
	envFiles   []string
	logOut     io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "moodlesync",
		Short:         "Import moodle courses, programs and participants into the platform database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.logOut == nil {
				a.logOut = cmd.ErrOrStderr()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (optional, env vars override it)")
	cmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to load (default .env)")

	cmd.AddCommand(newSyncCmd(a), newCoursesCmd(a), newMigrateCmd(a))
	return cmd
}

func (a *app) load() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(a.configPath, a.envFiles...)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, a.logOut)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func storeOptions(cfg config.Config) (store.Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return store.Options{}, err
	}
	db := cfg.Database
	return store.Options{
		Driver:       db.Driver,
		Host:         db.Host,
		Port:         db.Port,
		User:         db.User,
		Password:     db.Password,
		Name:         db.Name,
		BatchSize:    db.BatchSize,
		IDStep:       db.IDStep,
		LockName:     db.LockName,
		LockTimeout:  db.LockTimeout,
		MaxOpenConns: db.MaxOpenConns,
		Location:     loc,
	}, nil
}

func openDB(ctx context.Context, cfg config.Config) (*store.DB, error) {
	opts, err := storeOptions(cfg)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newProvider(cfg config.Config, log logrus.FieldLogger) moodle.Provider {
	client := moodle.New(cfg.Moodle.URL, cfg.Moodle.Token)
	if cfg.Moodle.Timeout > 0 {
		client.HTTP.Timeout = cfg.Moodle.Timeout
	}
	return moodle.Provider{
		C:                  client,
		Workers:            cfg.Moodle.Workers,
		SkipShortNames:     cfg.Moodle.SkipShortNames,
		ExcludedFirstNames: cfg.Moodle.ExcludedFirstNames,
		ModularFormats:     cfg.Moodle.ModularFormats,
		Log:                log,
	}
}
