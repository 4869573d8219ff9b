// internal/process/process.go

// Package process converts raw frames for display off the logic goroutine.
package process

import (
	"fmt"
	"time"

	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/internal/metrics"
	"github.com/AlverezYari/skyframe/pkg/frame"
	"go.uber.org/zap"
)

// Processor has no periodic work; run it with a zero tick period.
type Processor struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	emit    func(messages.StateMessage) error
}

func New(emit func(messages.StateMessage) error, logger *zap.Logger, m *metrics.Metrics) *Processor {
	return &Processor{logger: logger, metrics: m, emit: emit}
}

func (p *Processor) Process(msg messages.ProcessMessage) error {
	if msg.Frame == nil {
		return fmt.Errorf("convert raw image: no frame")
	}

	start := time.Now()
	image, err := frame.DebayerScaleFast(msg.Frame, msg.Size, msg.Rendering)
	if err != nil {
		return fmt.Errorf("convert raw image: %w", err)
	}
	elapsed := time.Since(start)
	p.metrics.Observe(metrics.ProcessDuration, elapsed)
	p.logger.Debug("frame converted",
		zap.Int("width", image.Width()),
		zap.Int("height", image.Height()),
		zap.Duration("elapsed", elapsed))

	return p.emit(messages.NewFrameProcessed(image))
}

func (p *Processor) Periodic() error {
	return nil
}
