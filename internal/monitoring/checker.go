package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates ingest health on a fixed cadence while serve mode is up.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg}
}

func (c *Checker) interval() time.Duration {
	if c.cfg.CheckIntervalSecs > 0 {
		return time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	}
	return defaultCheckInterval
}

// Run blocks, collecting a snapshot and dispatching any triggered alerts once
// per interval, until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("alert checker running",
		zap.Duration("interval", c.interval()),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(c.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker shut down")
			return
		case <-ticker.C:
		}

		snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
		if err != nil {
			log.Error("collect ingest metrics", zap.Error(err))
			continue
		}

		alerts := c.alerter.Evaluate(snap)
		if len(alerts) == 0 {
			log.Debug("ingest health nominal")
			continue
		}
		sent := c.alerter.SendAlerts(ctx, alerts)
		log.Info("alerts dispatched",
			zap.Int("triggered", len(alerts)),
			zap.Int("delivered", sent),
		)
	}
}
