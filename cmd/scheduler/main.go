package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/meeting-scheduler/internal/config"
	"github.com/example/meeting-scheduler/internal/logging"
	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/persistence/sqlite"
	"github.com/example/meeting-scheduler/internal/registry"
	"github.com/example/meeting-scheduler/internal/reminder"
)

func main() {
	// A missing .env file is fine; the environment alone is authoritative.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, logger)

	store, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close snapshot store", "error", cerr)
		}
	}()

	notifier := reminder.NotifierFunc(func(ctx context.Context, roomID string, leadMinutes int) error {
		logging.FromContext(ctx).Info("reminder due",
			"delivery_id", uuid.NewString(),
			"room_id", roomID,
			"lead_minutes", leadMinutes,
		)
		return nil
	})

	reminders := reminder.NewScheduler(notifier, time.Now, logger, cfg.ReminderPollInterval)
	reg := registry.New(store, reminders, time.Now,
		registry.WithDefaultReminderLeads(cfg.ReminderLeadMinutes),
		registry.WithLogger(logger),
	)

	rehydrate(ctx, logger, store, reg)

	errCh := make(chan error, 2)
	go func() { errCh <- reminders.Run(ctx) }()
	go func() { errCh <- reg.RunSweeper(ctx, cfg.SweepInterval) }()

	logger.Info("meeting scheduler running",
		"sqlite_dsn", cfg.SQLiteDSN,
		"sweep_interval", cfg.SweepInterval.String(),
		"reminder_poll_interval", cfg.ReminderPollInterval.String(),
	)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run loop failed", "error", err)
		os.Exit(1)
	}
	logger.Info("meeting scheduler stopped")
}

// rehydrate reinstalls persisted one-off meetings that have not yet ended,
// restoring their reminder sets. Recurring meetings keep their snapshots but
// are not reinstalled automatically; their owner re-creates them with the
// full recurrence spec.
func rehydrate(ctx context.Context, logger *slog.Logger, store persistence.Store, reg *registry.Registry) {
	meetings, err := store.ListMeetings(ctx)
	if err != nil {
		logger.Error("failed to list persisted meetings", "error", err)
		return
	}

	now := time.Now()
	restored := 0
	for _, m := range meetings {
		if m.RRule != "" {
			logger.Warn("skipping recurring meeting during rehydration", "room_id", m.RoomID)
			continue
		}
		end := m.Start.Add(time.Duration(m.DurationMinutes) * time.Minute)
		if end.Before(now) {
			continue
		}
		_, err := reg.Create(ctx, registry.CreateParams{
			RoomID:          m.RoomID,
			Title:           m.Title,
			Description:     m.Description,
			Start:           m.Start,
			DurationMinutes: m.DurationMinutes,
			TimeZone:        m.TimeZone,
			OrganizerID:     m.OrganizerID,
			Attendees:       m.Attendees,
		})
		if err != nil {
			logger.Error("failed to rehydrate meeting", "room_id", m.RoomID, "error", err)
			continue
		}
		restored++
	}
	if restored > 0 {
		logger.Info("rehydrated persisted meetings", "count", restored)
	}
}
