package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"runtime"

	"github.com/CruiseDevice/sbhsd"
	showboards "github.com/CruiseDevice/sbhsd/cmd/sbhsd/show_boards"
	showcurves "github.com/CruiseDevice/sbhsd/cmd/sbhsd/show_curves"
	"github.com/CruiseDevice/sbhsd/environment"
	"github.com/CruiseDevice/sbhsd/sbhs"
	"github.com/CruiseDevice/sbhsd/telemetry"
	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cpath string
	dummy int
)

func main() {
	cmd := &cobra.Command{
		Use:     "sbhsd",
		Short:   "A network control surface for Single Board Heater Systems",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.NoArgs,
		RunE:    daemon,
	}
	cmd.Flags().StringVarP(&cpath, "config", "c", "/etc/sbhsd/sbhsd.yml", "Configfile path")
	cmd.Flags().IntVarP(&dummy, "dummy", "", 0, "Start sbhsd with the given number of dummy boards instead of the serial devices")
	cmd.AddCommand(showboards.Command())
	cmd.AddCommand(showcurves.Command())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for sbhsd",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(cmd.Version)
		},
	})

	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func daemon(_ *cobra.Command, args []string) error {
	cfg, err := sbhsd.Load(cpath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	colors := true
	if cfg.LogFile != "" {
		// Append-only diagnostic log, shared with stdout.
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("log_file: %w", err)
		}
		defer f.Close()

		w = io.MultiWriter(os.Stdout, f)
		colors = false
	}

	h := logger.NewSlogTextHandler(w, &logger.SlogTextOption{
		Level:           level,
		ForceColors:     colors,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log := logger.WrapSlogHandler(h)
	ctx := logger.WithLogger(context.Background(), log)

	log.Infof("sbhsd version %s", version)

	var boards sbhsd.Boards
	if dummy > 0 {
		d := sbhsd.NewDummyBoards(dummy)
		d.SetLogger(log)
		boards = d
		log.Infof("Using %d dummy boards", dummy)
	} else {
		driver := sbhs.NewDriver(environment.DeviceDir(cfg.DeviceDir))
		driver.SetLogger(log)
		boards = sbhsd.NewSession(driver)
		log.Infof("Looking for boards in %s", driver.Dir())
	}

	var publisher sbhsd.Publisher
	if cfg.MQTT.Broker != "" {
		p, err := telemetry.Connect(cfg.MQTT)
		if err != nil {
			return err
		}
		publisher = p
		log.Infof("Publishing readings to %s on %s/#", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}

	ctx, cancel := context.WithCancel(ctx)

	controller, err := sbhsd.New(cfg, boards, sbhsd.NewCurveShaper(cfg), publisher)
	if err != nil {
		cancel()
		if publisher != nil {
			publisher.Close()
		}
		return err
	}
	controller.Launch(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	<-ctx.Done()
	cancel()

	log.Info("Gracefully shutdown")
	return nil
}
