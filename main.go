package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"

	"github.com/richlink-iot/meshctl/provisioner"
	"github.com/richlink-iot/meshctl/state"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the provisioner module")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("state-file", ".mesh_state.json", "Path to the local publish/subscribe state file")
	flag.Int("scan-seconds", 10, "Device scan duration in seconds")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	linkConfig, err := provisioner.NewConfigBuilder().
		WithLogger(logger).
		WithDialer(provisioner.SerialDialer{
			PortName: config.SerialPort,
			Mode: &serial.Mode{
				BaudRate: config.BaudRate,
				DataBits: 8,
				Parity:   serial.NoParity,
				StopBits: serial.OneStopBit,
			},
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create link config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	link, err := provisioner.New(ctx, linkConfig)
	if err != nil {
		logger.Error("Failed to open link", "error", err, "port", config.SerialPort)
		os.Exit(1)
	}

	go func() {
		if err := link.Loop(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Link loop stopped", "error", err)
		}
	}()

	dispatcher := provisioner.NewDispatcher(link, logger)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Dispatcher stopped", "error", err)
		}
	}()

	store := state.NewStore(config.StateFile)
	prov := provisioner.NewProvisioner(link, dispatcher, store, logger)

	cli := &CLI{
		Provisioner:  prov,
		Logger:       logger.With("component", "cli"),
		Out:          os.Stdout,
		ScanDuration: time.Duration(config.ScanSeconds) * time.Second,
	}

	runErr := cli.Run(ctx, flag.Args())

	if err := link.Close(); err != nil {
		logger.Error("Failed to close link", "error", err)
	}

	if runErr != nil {
		logger.Error("Command failed", "error", runErr)
		os.Exit(1)
	}
}
