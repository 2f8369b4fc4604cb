// Command unipid bridges Unipi Neuron/Patron PLC I/O to MQTT and Home
// Assistant discovery. See spec §5/§6 for the CLI and supervisor
// contract this follows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"unipid/internal/config"
	"unipid/internal/logger"
	"unipid/internal/supervisor"
)

// version is set at build time via -ldflags; left as a default for
// development builds.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configDir   string
		logSink     string
		showVersion bool
		verbosity   int
	)

	fs := flag.NewFlagSet("unipid", flag.ContinueOnError)
	fs.StringVar(&configDir, "c", "/etc/unipi", "configuration directory")
	fs.StringVar(&configDir, "config", "/etc/unipi", "configuration directory")
	fs.StringVar(&logSink, "log", "stdout", "log sink: stdout or systemd")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.BoolFunc("v", "increase verbosity (repeatable: -v, -vv, -vvv)", func(string) error {
		verbosity++
		return nil
	})

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: unipid [-c|--config dir] [--log stdout|systemd] [-v|-vv|-vvv] [--version]\n")
		fs.PrintDefaults()
	}

	if err := parseArgs(fs, os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	if showVersion {
		fmt.Println("unipid", version)
		return 0
	}

	logger.New(logger.Config{Level: logger.VerbosityToLevel(verbosity), Sink: logger.Sink(logSink)})

	cfg, err := config.Load(configDir)
	if err != nil {
		logger.LogError("configuration error: %v", err)
		return 1
	}

	sup, err := supervisor.Build(cfg)
	if err != nil {
		logger.LogError("startup error: %v", err)
		return 1
	}
	defer sup.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.LogInfo("received exit, exiting")
		cancel()
	}()

	if err := sup.Run(ctx); err != nil {
		logger.LogError("shutdown, due to %v", err)
		return 1
	}
	return 0
}

// parseArgs supports the bundled short forms (-v, -vv, -vvv) the flag
// package does not parse natively, by expanding them before Parse runs.
func parseArgs(fs *flag.FlagSet, args []string) error {
	expanded := make([]string, 0, len(args))
	for _, a := range args {
		switch a {
		case "-vv":
			expanded = append(expanded, "-v", "-v")
		case "-vvv":
			expanded = append(expanded, "-v", "-v", "-v")
		default:
			expanded = append(expanded, a)
		}
	}
	return fs.Parse(expanded)
}
