// cmd/skyframe/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlverezYari/skyframe/internal/actor"
	"github.com/AlverezYari/skyframe/internal/bridge"
	"github.com/AlverezYari/skyframe/internal/config"
	"github.com/AlverezYari/skyframe/internal/gpio"
	"github.com/AlverezYari/skyframe/internal/logging"
	"github.com/AlverezYari/skyframe/internal/logic"
	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/internal/metrics"
	"github.com/AlverezYari/skyframe/internal/process"
	"github.com/AlverezYari/skyframe/internal/server"
	"github.com/AlverezYari/skyframe/internal/storage"
	"github.com/AlverezYari/skyframe/internal/telemetry"
	"github.com/AlverezYari/skyframe/internal/tui"
	"github.com/AlverezYari/skyframe/pkg/imager"
	"github.com/AlverezYari/skyframe/pkg/imager/demo"
	"github.com/AlverezYari/skyframe/pkg/imager/webcam"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath   string
	demo         bool
	webcam       int
	debug        bool
	logFile      string
	useTUI       bool
	writeDefault bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("skyframe", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "config file, JSON (comments allowed) or YAML (default ~/.config/skyframe/config.json)")
	flagSet.BoolVar(&opts.demo, "demo", false, "use the simulated camera")
	flagSet.IntVar(&opts.webcam, "webcam", -1, "use the webcam with this index as a camera")
	flagSet.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flagSet.StringVar(&opts.logFile, "log", "", "log file (overrides the config)")
	flagSet.BoolVar(&opts.useTUI, "tui", false, "run the terminal console")
	flagSet.BoolVar(&opts.writeDefault, "write-default-config", false, "write the default config to --config and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if opts.writeDefault {
		return config.WriteDefault(opts.configPath)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, syncLogs, err := logging.New(logging.Options{
		Debug: opts.debug,
		File:  cfg.LogFile,
		// the console owns the terminal while it runs
		Console: !opts.useTUI,
	})
	if err != nil {
		return err
	}
	defer syncLogs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = serve(ctx, cfg, opts.useTUI, logger)
	logging.LogErr(logger, "shutdown", err)
	return err
}

func applyFlags(cfg *config.AppConfig, opts options) {
	if opts.demo {
		cfg.Camera.Driver = "demo"
	}
	if opts.webcam >= 0 {
		cfg.Camera.Driver = "webcam"
		cfg.Camera.DeviceIndex = opts.webcam
	}
	if opts.logFile != "" {
		cfg.LogFile = opts.logFile
	}
}

func newDriver(cfg config.CameraConfig) imager.Driver {
	if cfg.Driver == "webcam" {
		return webcam.NewDriver(max(cfg.DeviceIndex, 0))
	}
	return demo.NewDriver()
}

func serve(parent context.Context, cfg *config.AppConfig, useTUI bool, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	g, gctx := errgroup.WithContext(ctx)

	// Synchronous side: each actor owns one receive channel.
	logicCh := make(chan messages.StateMessage, 64)
	clientCh := make(chan messages.ClientMessage, 16)
	processCh := make(chan messages.ProcessMessage, 1)
	storageCh := make(chan messages.StorageMessage, 8)
	ioCh := make(chan messages.IoMessage, 16)

	// Asynchronous side: network tasks feed networkCh, the hub drains hubCh.
	networkCh := make(chan messages.StateMessage, 64)
	hubCh := make(chan messages.ClientMessage, 16)

	toLogic := actor.Sender[messages.StateMessage](gctx, logicCh)
	fromNetwork := actor.Sender[messages.StateMessage](gctx, networkCh)

	// storage acknowledges through a mailbox that never blocks, so a full
	// logicCh can not stall it while logic waits on storageCh
	storageAcks := actor.NewLatest(func(msg messages.StateMessage) messages.StateType { return msg.Type })
	storageMgr := storage.NewManager(cfg.Storage, storage.NewFitsWriter(), storageAcks.Put, logger.Named("storage"), m)
	ioMgr := gpio.NewManager(cfg.Io, toLogic, logger.Named("io"))
	processor := process.New(toLogic, logger.Named("process"), m)

	params := messages.DefaultCameraParams(cfg.Camera.RenderSize)
	params.Gain = cfg.Camera.Gain
	params.Time = cfg.Camera.Time
	params.Temperature = cfg.Camera.Temperature

	orchestrator := logic.New(newDriver(cfg.Camera), params, storageMgr.Detail(), logic.Outputs{
		Client:  actor.Sender[messages.ClientMessage](gctx, clientCh),
		Process: actor.Offer[messages.ProcessMessage](processCh),
		Storage: actor.Offer[messages.StorageMessage](storageCh),
		Io:      actor.Sender[messages.IoMessage](gctx, ioCh),
	}, logger.Named("logic"), m)

	hub := server.NewHub(logger.Named("hub"), m)
	srv := server.New(cfg.Addr(), hub, fromNetwork, reg, logger.Named("server"))

	g.Go(func() error {
		actor.Run[messages.StateMessage](gctx, logger.Named("logic"), logicCh, logic.TickPeriod, orchestrator)
		orchestrator.Close()
		// logic is the only sender on these, closing them stops the rest
		close(clientCh)
		close(processCh)
		close(storageCh)
		close(ioCh)
		return nil
	})
	g.Go(func() error {
		actor.Run[messages.ProcessMessage](gctx, logger.Named("process"), processCh, 0, processor)
		return nil
	})
	g.Go(func() error {
		actor.Run[messages.StorageMessage](gctx, logger.Named("storage"), storageCh, storage.TickPeriod, storageMgr)
		return nil
	})
	g.Go(func() error {
		storageAcks.Forward(gctx, logicCh)
		return nil
	})
	g.Go(func() error {
		actor.Run[messages.IoMessage](gctx, logger.Named("io"), ioCh, gpio.TickPeriod, ioMgr)
		return nil
	})

	g.Go(func() error {
		bridge.Forward[messages.StateMessage](gctx, networkCh, logicCh)
		return nil
	})
	g.Go(func() error {
		// drain on a background context so the last view reaches the hub
		bridge.ForwardAndClose[messages.ClientMessage](context.Background(), clientCh, hubCh)
		return nil
	})
	g.Go(func() error {
		hub.Run(hubCh)
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Mqtt.Broker != "" {
		publisher := telemetry.New(telemetry.NewClient(cfg.Mqtt), cfg.Mqtt.TopicPrefix, fromNetwork, logger.Named("mqtt"))
		g.Go(func() error {
			// a broker outage must not take the camera down
			logging.LogErr(logger, "mqtt", publisher.Run(gctx, hub))
			return nil
		})
	}

	if useTUI {
		g.Go(func() error {
			defer cancel()
			model := tui.New(hub, fromNetwork, cfg.Addr())
			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
			final, err := program.Run()
			if f, ok := final.(tui.Model); ok {
				f.Close()
			}
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		})
	}

	logger.Info("skyframe started",
		zap.String("addr", cfg.Addr()),
		zap.String("driver", cfg.Camera.Driver),
		zap.Bool("mqtt", cfg.Mqtt.Broker != ""))

	return g.Wait()
}
