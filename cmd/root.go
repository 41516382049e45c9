package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/worklog/internal/backup"
	"github.com/Tiliavir/worklog/internal/config"
	"github.com/Tiliavir/worklog/internal/logging"
	"github.com/Tiliavir/worklog/internal/metrics"
	"github.com/Tiliavir/worklog/internal/storage"
	"github.com/Tiliavir/worklog/internal/timecalc"
	"github.com/Tiliavir/worklog/internal/worklog"
)

// Exit codes: usage and validation problems exit 1, storage and file I/O
// failures exit 2.
const (
	exitUser    = 1
	exitStorage = 2
)

var (
	cfgFile string
	app     *session
	now     = time.Now
)

// session holds what a single command invocation needs.
type session struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Recorder
	store   *storage.Store
	svc     *worklog.Service
	bridge  *backup.Bridge
}

var rootCmd = &cobra.Command{
	Use:   "wlog",
	Short: "wlog – a local daily worklog",
	Long: `wlog records what you worked on each day, grouped by project.
All data is kept in a local SQLite database (~/.wlog/worklog.db by default).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: openSession,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.wlog/config.yaml)")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(outlookCmd)
}

// Execute is the entry point called from main.
func Execute() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// run executes one command line and releases the session afterwards.
func run(args []string, stdout, stderr io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	err := rootCmd.Execute()
	if cerr := closeSession(); err == nil {
		err = cerr
	}
	return err
}

// needsSession reports whether cmd works on the database. Cobra's help and
// completion commands do not.
func needsSession(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func openSession(cmd *cobra.Command, _ []string) error {
	if !needsSession(cmd) {
		return nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	path, err := storage.ExpandPath(cfg.Storage.Path)
	if err != nil {
		return err
	}

	rec := metrics.New()
	store := storage.New(path, log, rec)
	if err := store.Initialize(cmd.Context()); err != nil {
		return err
	}
	svc := worklog.New(store, log)
	app = &session{
		cfg:     cfg,
		log:     log,
		metrics: rec,
		store:   store,
		svc:     svc,
		bridge:  backup.New(store, svc, log),
	}
	log.Debug("session opened", zap.String("command", cmd.CommandPath()), zap.String("db", path))
	return nil
}

func closeSession() error {
	if app == nil {
		return nil
	}
	s := app
	app = nil
	err := s.store.Close()
	if merr := s.metrics.WriteTextfile(s.cfg.Metrics.Textfile); merr != nil {
		s.log.Warn("metrics not written", zap.Error(merr))
	}
	_ = s.log.Sync()
	return err
}

// ioError marks a failure of a file or remote service outside the database.
type ioError struct{ err error }

func (e *ioError) Error() string { return e.err.Error() }
func (e *ioError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var serr *storage.StorageError
	var ferr *ioError
	var cerr *worklog.CascadeError
	switch {
	case errors.Is(err, storage.ErrStorageUnavailable),
		errors.Is(err, storage.ErrNotInitialized),
		errors.As(err, &serr),
		errors.As(err, &ferr),
		errors.As(err, &cerr):
		return exitStorage
	}
	return exitUser
}

func today() string {
	return timecalc.DateString(now())
}
