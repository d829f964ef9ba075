package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"linetrack-core/utils"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred closes always execute.
func run(args []string) int {
	fs := flag.NewFlagSet("closed_loop", flag.ContinueOnError)
	var (
		scenPath = fs.String("scenario", "scenarios/sim_centered.json", "Scenario file (.json, .yaml)")
		mapPath  = fs.String("map", "", "CAN map CSV (default: built-in line_map.csv)")
		iface    = fs.String("iface", "vcan0", "SocketCAN interface name")
		port     = fs.String("serial", "", "Serial port for the debug sensor stream")
		baud     = fs.Int("baud", 115200, "Serial baud rate")
		logLevel = fs.String("log", "info", "trace|debug|info|warn|error|critical")
		logFile  = fs.String("logfile", "line_follower.log", "Log file (empty: stdout only)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := utils.ParseLevel(*logLevel)

	var log *utils.Logger
	if *logFile == "" {
		log = utils.NewWriterLogger(os.Stdout, level)
	} else {
		var err error
		log, err = utils.NewFileLogger(*logFile, level, true)
		if err != nil {
			_, _ = os.Stderr.WriteString("ERROR: cannot open " + *logFile + ": " + err.Error() + "\n")
			return 1
		}
	}
	defer log.Close()

	cfg := RunnerConfig{
		Interface:    *iface,
		MapPath:      *mapPath,
		ScenarioPath: *scenPath,
		SerialPort:   *port,
		Baud:         *baud,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		return 1
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Error("Close failed: %v", err)
		}
	}()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		return 1
	}
	return 0
}
