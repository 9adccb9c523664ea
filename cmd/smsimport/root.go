package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/auth"
	"github.com/suPer8Hu/sms-archive/internal/config"
	"github.com/suPer8Hu/sms-archive/internal/db"
	"github.com/suPer8Hu/sms-archive/internal/imports"
	"github.com/suPer8Hu/sms-archive/internal/ingest"
	"github.com/suPer8Hu/sms-archive/internal/logging"
	"github.com/suPer8Hu/sms-archive/internal/media"
	"go.uber.org/zap"
)

type globalFlags struct {
	dsn         string
	driver      string
	mediaDir    string
	skipInvalid bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:          "smsimport",
		Short:        "Import SMS/MMS archives into the message store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.dsn, "dsn", "", "database DSN (overrides DB_DSN)")
	root.PersistentFlags().StringVar(&g.driver, "driver", "", "sqlite or mysql (overrides DB_DRIVER)")
	root.PersistentFlags().StringVar(&g.mediaDir, "media-dir", "", "media output directory (overrides MEDIA_DIR)")
	root.PersistentFlags().BoolVar(&g.skipInvalid, "skip-invalid", false, "log and skip malformed records instead of failing")

	root.AddCommand(
		newXMLCmd(&g),
		newCSVCmd(&g),
		newTokenCmd(),
	)
	return root
}

func newXMLCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "xml FILE OWNER_NUMBER",
		Short: "Import an SMS Backup & Restore XML file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, g, args[1], func(ctx context.Context, r *ingest.Run) (ingest.Stats, error) {
				return r.ImportXMLFile(ctx, args[0])
			})
		},
	}
}

func newCSVCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "csv FILE OWNER_NUMBER [ATTACHMENTS_DIR]",
		Short: "Import a CSV message export with optional attachments",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 3 {
				dir = args[2]
			}
			return runImport(cmd, g, args[1], func(ctx context.Context, r *ingest.Run) (ingest.Stats, error) {
				return r.ImportCSVFile(ctx, args[0], dir)
			})
		},
	}
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token SUBJECT",
		Short: "Mint a bearer token for the import API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.SignJWT(args[0], cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func (g *globalFlags) apply(cfg *config.Config) {
	if g.dsn != "" {
		cfg.DBDSN = g.dsn
	}
	if g.driver != "" {
		cfg.DBDriver = g.driver
	}
	if g.mediaDir != "" {
		cfg.MediaDir = g.mediaDir
	}
	if g.skipInvalid {
		cfg.SkipInvalidRecords = true
	}
}

func runImport(cmd *cobra.Command, g *globalFlags, owner string, importFn func(context.Context, *ingest.Run) (ingest.Stats, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	g.apply(&cfg)

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	opts, err := cfg.IngestOptions()
	if err != nil {
		return err
	}
	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.Migrate(gdb, append(archive.Models(), &imports.Job{})...); err != nil {
		return err
	}
	extractor, err := media.NewExtractor(cfg.MediaDir)
	if err != nil {
		return err
	}

	run, err := ingest.NewRun(archive.NewRepo(gdb), extractor, owner, opts, log, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := importFn(ctx, run)
	if err != nil {
		log.Error("import aborted", zap.Any("stats", stats), zap.Error(err))
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
