// Command ambient mirrors the dominant colour of a screen onto keyboard zones
// through the Das Keyboard Q signal service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"

	"github.com/scheerer/dasq-signals/internal/config"
	"github.com/scheerer/dasq-signals/internal/lights"
	"github.com/scheerer/dasq-signals/internal/logging"
	"github.com/scheerer/dasq-signals/internal/screen"
	"github.com/scheerer/dasq-signals/signals"
)

var logger = logging.New("main")

func main() {
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Invalid configuration")
	}
	signalConfig, err := cfg.SignalConfig()
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to load signal profile")
	}

	logger.With(zap.Any("config", cfg), zap.Any("signal", signalConfig)).Info("Starting ambient keyboard colors")
	logger.Info("Adjust CAPTURE_INTERVAL to change how often the screen is captured.")
	logger.Infof("Adjust COLOR_ALGO to change color algorithm. Valid values are: %v", screen.AlgorithmNames())
	logger.Info("Adjust PIXEL_GRID_SIZE to increase performance or accuracy. 1 is the most accurate.")
	logger.Info("Adjust DASQ_ZONES to choose the keys to light, e.g. KEY_Q,KEY_W,KEY_E.")
	logger.Info("Adjust SCREEN_NUMBER to target a different screen. 0 is the primary screen.")
	logger.Info("Press Ctrl+C to stop")

	computeColor, err := screen.ParseAlgorithm(cfg.ColorAlgo)
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Unknown color algorithm")
	}

	keyboard := lights.NewKeyboard(signalConfig, signals.DefaultClient)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(ctx, cfg, computeColor, keyboard)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	logger.Info("Shutting down")
	cancel()
	<-done

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := keyboard.Stop(stopCtx); err != nil {
		logger.With(zap.Error(err)).Warn("Failed to clear keyboard signals")
	}
}

func run(ctx context.Context, cfg config.AmbientConfig, computeColor screen.Algorithm, lightService lights.LightService) {
	ticker := time.NewTicker(cfg.CaptureInterval)
	defer ticker.Stop()

	var lastWarning time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		startTime := time.Now()
		img, err := screenshot.CaptureDisplay(cfg.ScreenNumber)
		if err != nil {
			logger.With(zap.Error(err)).Error("Failed to capture screen")
			continue
		}
		captureScreenDuration := time.Since(startTime)

		c := computeColor(img, cfg.PixelGridSize)
		color := lights.Color{Red: c.R, Green: c.G, Blue: c.B}

		if ctx.Err() != nil {
			return
		}
		setColorStart := time.Now()
		if err := lightService.SetColorWithDuration(ctx, color, cfg.CaptureInterval); err != nil {
			logger.With(zap.Error(err)).Warn("Failed to set keyboard color")
		}
		setColorDuration := time.Since(setColorStart)

		totalDuration := time.Since(startTime)
		if totalDuration > cfg.CaptureInterval && time.Since(lastWarning) > 10*time.Second {
			logger.With(
				zap.Stringer("captureScreenDuration", captureScreenDuration),
				zap.Stringer("setColorDuration", setColorDuration),
				zap.Stringer("totalDuration", totalDuration)).
				Warn("Cannot keep up with CAPTURE_INTERVAL. Consider increasing PIXEL_GRID_SIZE or CAPTURE_INTERVAL.")
			lastWarning = time.Now()
		}
	}
}
