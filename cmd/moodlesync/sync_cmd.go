package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"moodle-sync/internal/config"
	"moodle-sync/internal/export"
	"moodle-sync/internal/importer"
	"moodle-sync/internal/sftpclient"
	runsync "moodle-sync/internal/sync"
)

func newSyncCmd(a *app) *cobra.Command {
	var (
		reportPath string
		upload     bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch all moodle courses and import them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.load()
			if err != nil {
				return err
			}
			if reportPath == "" {
				reportPath = cfg.Report.Path
			}
			if upload && reportPath == "" {
				return errors.New("--sftp needs --report or REPORT_PATH")
			}
			if dryRun {
				err = cfg.ValidateMoodle()
			} else {
				err = cfg.Validate()
			}
			if err != nil {
				return err
			}

			sum, runErr := runSync(cmd.Context(), cfg, log, dryRun)
			if reportPath != "" && len(sum.Outcomes) > 0 {
				if err := publishReport(cmd.Context(), cfg, log, reportPath, sum, upload); err != nil {
					return errors.Join(runErr, err)
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "write a CSV run report to this path")
	cmd.Flags().BoolVar(&upload, "sftp", false, "upload the report over SFTP")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch from moodle and report, without touching the database")
	return cmd
}

func runSync(ctx context.Context, cfg config.Config, log *logrus.Logger, dryRun bool) (runsync.Summary, error) {
	runner := &runsync.Runner{Log: log, DryRun: dryRun}

	if !dryRun {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return runsync.Summary{}, err
		}
		defer db.Close()

		loc, err := cfg.Location()
		if err != nil {
			return runsync.Summary{}, err
		}
		runner.DB = db
		runner.Importer = importer.New(db, importer.Options{
			Source:            cfg.Import.Source,
			ProgressFromStart: cfg.Import.ProgressFromStart,
			BcryptCost:        cfg.Import.BcryptCost,
			Location:          loc,
		}, log)
	}

	return runner.SyncFrom(ctx, newProvider(cfg, log))
}

func publishReport(ctx context.Context, cfg config.Config, log logrus.FieldLogger, path string, sum runsync.Summary, upload bool) error {
	if err := export.WriteReportFile(path, sum); err != nil {
		return err
	}
	log.WithField("path", path).Info("report written")
	if !upload {
		return nil
	}

	s := cfg.SFTP
	err := sftpclient.UploadFile(ctx, sftpclient.Config{
		Host:                  s.Host,
		Port:                  s.Port,
		User:                  s.User,
		Pass:                  s.Password,
		RemoteDir:             s.RemoteDir,
		KnownHosts:            s.KnownHosts,
		InsecureIgnoreHostKey: s.InsecureIgnoreHostKey,
	}, path, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("upload report: %w", err)
	}
	log.WithField("remote_dir", s.RemoteDir).Info("report uploaded")
	return nil
}
