package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/stripefs/stripefs/internal/accelerator"
	"github.com/stripefs/stripefs/internal/config"
	"github.com/stripefs/stripefs/internal/fusebridge"
	"github.com/stripefs/stripefs/internal/monitor"
	"github.com/stripefs/stripefs/pkg/logging"
)

func main() {
	// Load environment variables from a .env file, if one exists
	godotenv.Load()

	foreground := pflag.BoolP("foreground", "f", false, "stay in the foreground (always on; kept for mount-tool compatibility)")
	debug := pflag.BoolP("debug", "d", false, "enable FUSE request tracing and debug logging")
	allowOther := pflag.Bool("allow-other", false, "allow other users to access the mount")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <mountpoint>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	if *debug {
		os.Setenv("LOG_LEVEL", "debug")
	}
	logger, err := logging.InitLogger()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg.Mount.Mountpoint = pflag.Arg(0)
	cfg.Mount.Foreground = cfg.Mount.Foreground || *foreground
	cfg.Mount.Debug = cfg.Mount.Debug || *debug
	cfg.Mount.AllowOther = cfg.Mount.AllowOther || *allowOther

	if err := run(cfg, logger); err != nil {
		logger.Error("Fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	accel := accelerator.New(*cfg, logger)
	defer accel.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Monitor.Enabled {
		mon := monitor.New(accel, cfg.Monitor.Interval, logger)
		go mon.Run(ctx)
	}

	server, err := fusebridge.Mount(fusebridge.Options{
		Mountpoint:  cfg.Mount.Mountpoint,
		Accelerator: accel,
		FsName:      cfg.Mount.FSName,
		AllowOther:  cfg.Mount.AllowOther,
		Debug:       cfg.Mount.Debug,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()

	select {
	case sig := <-sigCh:
		logger.Info(fmt.Sprintf("Received %s signal, unmounting...", sig))
		if err := server.Unmount(); err != nil {
			logger.Error("Unmount failed", slog.String("error", err.Error()))
		}
		<-done
	case <-done:
		// Unmounted externally (e.g. fusermount -u).
		logger.Info("Filesystem unmounted")
	}

	cancel()
	return nil
}
