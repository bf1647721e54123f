package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// ListenForShutdown blocks until a termination signal arrives, runs the handler
// and gives in-flight work up to timeToWait before returning.
func ListenForShutdown(
	signalChan chan os.Signal,
	signalHandler func(deadline time.Duration),
	timeToWait time.Duration,
	l *zap.Logger,
) {
	sig := <-signalChan
	switch sig {
	case syscall.SIGTERM, syscall.SIGINT:
		l.Sugar().Infof("caught signal %v", sig)

		start := time.Now()
		signalHandler(timeToWait)

		l.Sugar().Infow("Shutdown complete", zap.Duration("elapsed", time.Since(start)))
	}
}
