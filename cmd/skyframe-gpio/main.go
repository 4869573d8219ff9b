// cmd/skyframe-gpio/main.go

// skyframe-gpio exercises a single output line. By default it toggles the
// line every interval; with --duty it plays a PWM pattern instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlverezYari/skyframe/internal/gpio"
	"github.com/AlverezYari/skyframe/internal/logging"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var path string
	var interval time.Duration
	var count int
	var duty float64

	flagSet := pflag.NewFlagSet("skyframe-gpio", pflag.ContinueOnError)
	flagSet.StringVar(&path, "path", "", "output file to drive (required)")
	flagSet.DurationVar(&interval, "interval", 500*time.Millisecond, "time between writes")
	flagSet.IntVar(&count, "count", 0, "stop after this many writes, 0 runs until interrupted")
	flagSet.Float64Var(&duty, "duty", -1, "play a PWM pattern with this duty cycle (0..1) instead of toggling")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if path == "" {
		return errors.New("--path is required")
	}
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", interval)
	}
	if duty > 1 {
		return fmt.Errorf("--duty must be at most 1, got %v", duty)
	}

	logger, syncLogs, err := logging.New(logging.Options{Console: true})
	if err != nil {
		return err
	}
	defer syncLogs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output := gpio.NewProgrammableOutput(path)
	if duty >= 0 {
		output.SetPattern(gpio.PatternPwm(duty))
	} else {
		output.SetPattern([]bool{true, false})
	}
	logger.Info("driving output",
		zap.String("path", path),
		zap.Duration("interval", interval),
		zap.Float64("duty", duty))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for written := 0; count == 0 || written < count; written++ {
		if err := output.Iterate(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			logger.Info("stopped", zap.Int("writes", written+1))
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
