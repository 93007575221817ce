package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/yachay/internal/bot"
	"github.com/example/yachay/internal/catalog"
	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/internal/scheduler"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Telegram bot, scheduler and metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := bot.New(cfg.Telegram, bot.Deps{
			Store:     a.store,
			Catalog:   a.catalog,
			Sessions:  a.sessions,
			Detection: a.detection,
			Judge:     a.judge,
			Tracker:   a.tracker,
		}, bot.DefaultConfig(), logger)
		if err != nil {
			return err
		}

		if cfg.Scheduler.Enabled {
			loc, err := cfg.Mastery.Location()
			if err != nil {
				return err
			}
			s := scheduler.New(a.store, a.tracker, b, cfg.Scheduler,
				scheduler.WithLocation(loc),
				scheduler.WithLogger(logger))
			if err := s.Start(); err != nil {
				return err
			}
			defer s.Stop()
		}

		g, gctx := errgroup.WithContext(ctx)
		gctx, cancel := context.WithCancel(gctx)
		defer cancel()
		g.Go(func() error {
			// the bot leaving takes the metrics server down with it
			defer cancel()
			return b.Run(gctx)
		})

		if cfg.Metrics.Addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", a.metrics.Handler())
			srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			g.Go(func() error {
				logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return eris.Wrap(err, "metrics server")
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}

		err = g.Wait()
		logger.Info("shutdown complete")
		return err
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("schema up to date", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the starter translation catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := catalog.New(db, nil, logger).Seed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d new translations\n", n)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import translations from an .xlsx or .csv file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		ic := catalog.DefaultImportConfig()
		ic.FilePath = args[0]
		if sheet, _ := cmd.Flags().GetString("sheet"); sheet != "" {
			ic.SheetName = sheet
		}
		if row, _ := cmd.Flags().GetInt("start-row"); row > 0 {
			ic.StartRow = row
		}

		res, err := catalog.New(db, nil, logger).Import(cmd.Context(), ic)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "processed %d rows: %d created, %d updated, %d skipped\n",
			res.TotalProcessed, res.Created, res.Updated, res.Skipped)
		for _, e := range res.Errors {
			fmt.Fprintln(out, "  "+e)
		}
		return nil
	},
}

var vocabCmd = &cobra.Command{
	Use:   "vocab <user-id>",
	Short: "Print a learner's vocabulary summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid user id %q", args[0])
		}
		db, err := database.Connect(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := database.NewVocabularyRepository(db).ListByUser(cmd.Context(), userID)
		if err != nil {
			return err
		}
		s := mastery.Summarize(entries)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "words: %d  mastered: %d  in progress: %d  needs practice: %d\n",
			s.TotalWords, s.MasteredWords, s.InProgress, s.NeedsPractice)
		for lvl := mastery.MaxLevel; lvl >= 0; lvl-- {
			fmt.Fprintf(out, "  %d stars: %d\n", lvl, s.Stars[lvl])
		}
		return nil
	},
}

func init() {
	importCmd.Flags().String("sheet", "", "sheet name for .xlsx files")
	importCmd.Flags().Int("start-row", 0, "first data row (1-based)")
}
