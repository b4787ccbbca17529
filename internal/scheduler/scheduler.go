package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/jcarrillo7/weather-station-api/internal/weather"
)

// Poller periodically fetches the station's current conditions and
// persists them, independent of client traffic. It runs on a fixed
// cadence: a failed iteration is logged and the next one happens on
// schedule anyway, with no backoff or jitter.
type Poller struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	interval  time.Duration
	log       *slog.Logger
}

// New creates a Poller fetching every interval.
func New(interval time.Duration, service *weather.Service, log *slog.Logger) *Poller {
	return &Poller{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the poll job and starts the underlying scheduler.
func (p *Poller) Start() error {
	seconds := int(p.interval.Seconds())
	if seconds <= 0 {
		seconds = 300
	}

	_, err := p.scheduler.Every(seconds).Seconds().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		obs, err := p.service.FetchAndStoreCurrent(ctx)
		if err != nil {
			p.log.Warn("auto-fetch failed", "error", err)
			return
		}
		p.log.Info("auto-fetched observation", "id", obs.ID, "timestamp", obs.Timestamp)
	})
	if err != nil {
		return err
	}

	p.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (p *Poller) Stop() {
	if p.scheduler != nil {
		p.scheduler.Stop()
	}
}
