package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"vaultfinder/internal/config"
	"vaultfinder/internal/database"
	"vaultfinder/internal/gatemap"
	"vaultfinder/internal/log"
	"vaultfinder/internal/names"
	"vaultfinder/internal/reftables"
	"vaultfinder/internal/report"
	"vaultfinder/internal/savegame"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Set up global panic handler first
	defer func() {
		if r := recover(); r != nil {
			log.Error("GLOBAL PANIC recovered", "error", r, "stack", string(debug.Stack()))
			fmt.Fprintf(os.Stderr, "vaultfinder crashed. See the debug log for details.\n")
			os.Exit(1)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := log.SetFileOutput(cfg.Path(cfg.LogFile)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not configure debug logging to file: %v\n", err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("vaultfinder starting", "version", version, "commit", commit, "date", date)

	if err := run(ctx, cfg, os.Stdin); err != nil {
		log.Error("Run failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		log.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, in io.Reader) error {
	started := time.Now()

	tables, err := reftables.Load(reftables.Paths{
		Offsets:     cfg.Path(cfg.OffsetsFile),
		SectorNames: cfg.Path(cfg.SectorNamesFile),
		ShipNames:   cfg.Path(cfg.ShipNamesFile),
		Strings:     cfg.Path(cfg.StringsFile),
	})
	if err != nil {
		return err
	}

	progress := func(macro, name string) {
		log.Debug("Sector", "macro", macro, "name", name)
	}
	terminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if terminal {
		progress = func(string, string) { fmt.Fprint(os.Stderr, ".") }
	}

	interpreter := savegame.NewInterpreter(tables, names.NewResolver(tables, cfg.DefaultPage), savegame.Options{
		IncludeHighways: cfg.IncludeHighways,
		Prefetch:        cfg.Prefetch,
		Progress:        progress,
	})

	rep, err := interpreter.Run(ctx, in)
	if terminal {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("interpret save file: %w", err)
	}

	output := cfg.Path(cfg.OutputFile)
	if err := rep.WriteFile(output, cfg.OutputFormat); err != nil {
		return err
	}

	if cfg.DatabaseFile != "" {
		if err := saveToDatabase(rep, cfg.Path(cfg.DatabaseFile)); err != nil {
			return err
		}
	}

	if cfg.GateMapFile != "" {
		if err := gatemap.WriteFile(ctx, rep, cfg.Path(cfg.GateMapFile), cfg.GateMapFormat); err != nil {
			return err
		}
	}

	sectors, objects := rep.Counts()
	log.Info("Report written", "file", output, "sectors", sectors, "objects", objects, "elapsed", time.Since(started))
	return nil
}

func saveToDatabase(rep *report.Report, path string) error {
	db := database.NewDatabase()
	if err := db.OpenDatabase(path); err != nil {
		return err
	}
	defer db.CloseDatabase()

	_, err := db.SaveReport(rep, "stdin")
	return err
}
