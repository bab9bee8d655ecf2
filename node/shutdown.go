package node

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type ShutdownHandler struct {
	Component string
	StopFunc  StopFunc
}

// ShutdownTimeout bounds the time all handlers together may take.
const ShutdownTimeout = 30 * time.Second

// MonitorShutdown runs the handlers in order on SIGINT, SIGTERM or when
// triggerCh is closed, and closes the returned channel once they are done.
func MonitorShutdown(triggerCh <-chan struct{}, handlers ...ShutdownHandler) <-chan struct{} {
	sigCh := make(chan os.Signal, 2)
	out := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			log.Warnw("received shutdown", "signal", sig)
		case <-triggerCh:
			log.Warn("received shutdown")
		}
		signal.Stop(sigCh)

		log.Warn("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		for _, h := range handlers {
			if err := h.StopFunc(ctx); err != nil {
				log.Errorf("shutting down %s failed: %s", h.Component, err)
				continue
			}
			log.Infof("%s shut down successfully ", h.Component)
		}

		log.Warn("Graceful shutdown successful")

		_ = log.Sync()
		close(out)
	}()

	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	return out
}
