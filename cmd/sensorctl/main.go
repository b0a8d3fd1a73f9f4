package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/sensorctl/internal/config"
	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/logger"
	"codeberg.org/mutker/sensorctl/internal/metrics"
	"codeberg.org/mutker/sensorctl/internal/pid"
	"codeberg.org/mutker/sensorctl/internal/sensor"
	"codeberg.org/mutker/sensorctl/internal/telemetry"
	"github.com/spf13/pflag"
)

// restoreTimeout bounds the return to preview after the run context is gone.
const restoreTimeout = 2 * time.Second

type app struct {
	cfg *config.Config
	log logger.Logger

	lock       *pid.Lock
	bus        sensor.RegisterBus
	closer     io.Closer
	controller *sensor.Controller
	journal    metrics.Recorder
	telemetry  telemetry.Collector

	masterClock uint64
	preview     sensor.Resolution
	capture     sensor.Resolution
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	if !cfg.Debug && !cfg.Verbose {
		if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
			logger.SetLogLevel(level)
		}
	}
	logger.Debug().Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	a, err := newApp(ctx, cfg)
	if err != nil {
		fatal(err, "failed to initialize sensorctl")
	}

	code := 0
	if err := a.run(ctx, command(cfg.Args)); err != nil {
		logError(err, "command failed")
		code = 1
	}

	a.cleanup()
	os.Exit(code)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	errFactory := errors.New()
	log := logger.Get()

	a := &app{
		cfg:         cfg,
		log:         log,
		masterClock: uint64(cfg.MasterClock),
		preview:     sensor.Resolution{Width: uint32(cfg.PreviewWidth), Height: uint32(cfg.PreviewHeight)},
		capture:     sensor.Resolution{Width: uint32(cfg.CaptureWidth), Height: uint32(cfg.CaptureHeight)},
	}

	if !cfg.Simulate {
		lock, err := pid.Acquire(pid.Path("", cfg.Bus, uint16(cfg.Address)))
		if err != nil {
			return nil, err
		}
		a.lock = lock
	}

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Listen = cfg.MetricsListen
	collector, err := telemetry.NewService(telemetryCfg, log.With("telemetry"))
	if err != nil {
		a.cleanup()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}
	a.telemetry = collector

	go func() {
		if err := collector.Serve(ctx); err != nil {
			logError(err, "metrics endpoint stopped")
		}
	}()

	if err := a.openBus(); err != nil {
		a.cleanup()
		return nil, err
	}

	journalCfg := metrics.DefaultConfig()
	journalCfg.Enabled = cfg.Journal
	journalCfg.DBPath = cfg.JournalDB
	journal, err := metrics.NewService(journalCfg, log.With("journal"))
	if err != nil {
		a.cleanup()
		return nil, errFactory.Wrap(errors.ErrInitJournal, err)
	}
	a.journal = journal

	translator, err := sensor.NewTranslator(translatorConfig(cfg))
	if err != nil {
		a.cleanup()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	opts := []sensor.ControllerOption{
		sensor.WithLogger(log.With("controller")),
		sensor.WithCounters(collector),
		sensor.WithMasterClock(a.masterClock),
		sensor.WithAutoWB(cfg.AutoWB),
	}

	flash, err := flashPolicy(cfg, log)
	if err != nil {
		a.cleanup()
		return nil, err
	}
	if flash != nil {
		opts = append(opts, sensor.WithFlash(flash))
	}

	a.controller = sensor.NewController(a.bus, sensor.NewTableModeWriter(sensor.DefaultModeTables()), translator, opts...)

	return a, nil
}

func (a *app) openBus() error {
	var raw sensor.RegisterBus

	if a.cfg.Simulate {
		raw = sensor.NewMemoryBus(sensor.SimulatedPreviewRegisters()...)
		a.log.Info().Msg("Using simulated sensor")
	} else {
		i2cBus, err := sensor.OpenI2C(a.cfg.Bus, uint16(a.cfg.Address))
		if err != nil {
			return err
		}
		raw, a.closer = i2cBus, i2cBus
		a.log.Info().Str("bus", i2cBus.String()).Msg("Opened sensor bus")
	}

	a.bus = sensor.NewRetryBus(raw, a.cfg.Retries, a.telemetry, a.log.With("bus"))

	return nil
}

func translatorConfig(cfg *config.Config) sensor.TranslatorConfig {
	tc := sensor.DefaultTranslatorConfig()
	tc.CaptureFPSx10 = uint32(cfg.CaptureFPS)
	tc.CaptureFrameLines = uint32(cfg.CaptureLines)
	tc.FrameLimit = uint32(cfg.FrameLimit)
	tc.BandFilterHz = cfg.BandFilter
	tc.NightMode = uint32(cfg.NightMode)
	tc.ManualGain = uint8(cfg.ManualGain)
	tc.MaxGain = uint8(cfg.MaxGain)
	tc.LowSpeed = cfg.LowSpeed

	if cfg.GainPolicy == config.GainPolicyManual {
		tc.Policy = sensor.ManualGain
	}

	return tc
}

func flashPolicy(cfg *config.Config, log logger.Logger) (*sensor.FlashPolicy, error) {
	mode, ok := sensor.ParseFlashMode(string(cfg.FlashMode))
	if !ok {
		return nil, errors.New().WithData(errors.ErrInvalidConfig, cfg.FlashMode)
	}

	if mode == sensor.FlashNone {
		return nil, nil
	}

	if cfg.FlashPin == "" {
		log.Warn().Str("flash_mode", mode.String()).Msg("Flash mode set without flash_pin, flash disabled")
		return nil, nil
	}

	torch, err := sensor.OpenGPIOTorch(cfg.FlashPin)
	if err != nil {
		return nil, err
	}

	return &sensor.FlashPolicy{
		Mode:   mode,
		Level:  uint8(cfg.FlashLevel),
		Settle: cfg.FlashSettle,
		Torch:  torch,
	}, nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// cleanup leaves the sensor in preview with its auto loops running, then
// releases everything newApp acquired.
func (a *app) cleanup() {
	if a.controller != nil && a.controller.State() != sensor.StatePreview {
		ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		if err := a.controller.Reset(ctx, a.preview); err != nil {
			logError(err, "failed to reset sensor")
		}
		cancel()
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logError(err, "failed to close journal")
		}
	}

	if a.telemetry != nil {
		if err := a.telemetry.Close(); err != nil {
			logError(err, "failed to stop telemetry")
		}
	}

	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			logError(err, "failed to close sensor bus")
		}
	}

	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			logError(err, "failed to remove pid file")
		}
	}

	logger.Info().Msg("Exiting...")
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}

	logger.Error().Err(err).Msg(msg)
}

func fatal(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.FatalWithCode(appErr).Msg(msg)
	}

	logger.Fatal().Err(err).Msg(msg)
}
