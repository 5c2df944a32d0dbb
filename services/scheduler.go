package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const registrationSweepTimeout = 30 * time.Second

// RegistrationSweeper periodically deactivates tournaments whose registration
// deadline passed before their roster filled.
type RegistrationSweeper struct {
	scheduler   gocron.Scheduler
	tournaments TournamentService
	logger      *slog.Logger
	now         func() time.Time
}

func NewRegistrationSweeper(tournaments TournamentService, interval time.Duration, logger *slog.Logger) (*RegistrationSweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	sw := &RegistrationSweeper{
		scheduler:   sched,
		tournaments: tournaments,
		logger:      logger,
		now:         time.Now,
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sw.Sweep),
		gocron.WithName("registration-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule registration sweep: %w", err)
	}
	return sw, nil
}

func (sw *RegistrationSweeper) Start() {
	sw.scheduler.Start()
	sw.logger.Info("registration sweeper started")
}

func (sw *RegistrationSweeper) Stop() error {
	return sw.scheduler.Shutdown()
}

// Sweep runs one pass. It is also the scheduled task.
func (sw *RegistrationSweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), registrationSweepTimeout)
	defer cancel()

	closed, err := sw.tournaments.CloseExpiredRegistrations(ctx, sw.now())
	if err != nil {
		sw.logger.Error("registration sweep failed", slog.Any("error", err))
		return
	}
	if closed > 0 {
		sw.logger.Info("registrations closed", slog.Int("tournaments", closed))
	}
}
