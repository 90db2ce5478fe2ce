// Command tgrate runs a throttled Telegram Bot API client: it long-polls for
// updates and echoes every text message back through chatlimit.Governor and
// a retry throttler, so a single process demonstrates the full admission
// and retry pipeline under live traffic.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tgrate/internal/app"
	"tgrate/internal/infra/config"
	"tgrate/internal/infra/logger"
)

func main() {
	if err := config.Load(".env"); err != nil {
		// Nothing to log to yet: logger.Init needs EnvConfig.LogLevel.
		println("tgrate: " + err.Error())
		os.Exit(1)
	}
	logger.Init(config.Env().LogLevel)
	for _, w := range config.Warnings() {
		logger.Warn(w)
	}

	a := app.New()
	if err := a.Init(); err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		a.Shutdown()
		close(shutdownDone)
	}()

	if err := a.Run(); err != nil {
		logger.Fatal("app run failed", zap.Error(err))
	}
	// Run returns as soon as Shutdown cancels the App's context; wait until
	// Shutdown has also stopped every service before exiting.
	<-shutdownDone
}
