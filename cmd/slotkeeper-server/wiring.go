package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/config"
	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/kafkax"
	"slotkeeper/backend/internal/outbox"
	"slotkeeper/backend/internal/service/appointments"
	"slotkeeper/backend/internal/store"
	"slotkeeper/backend/internal/store/memory"
	"slotkeeper/backend/internal/store/postgres"
	"slotkeeper/backend/internal/store/rediscache"
	"slotkeeper/backend/internal/transport/rest"
)

type storage struct {
	ledger   store.Ledger
	calendar store.CalendarSource
	catalog  store.ServiceCatalog

	db     *bun.DB
	outbox *outbox.Repository
	checks []rest.ReadyCheck
	closer []func() error
}

func (s storage) close() {
	for i := len(s.closer) - 1; i >= 0; i-- {
		if err := s.closer[i](); err != nil {
			slog.Warn("close failed", slog.Any("err", err))
		}
	}
}

type seed struct {
	Resources []domain.Resource
	Services  []domain.Service
}

type seedFile struct {
	Resources []seedResource   `json:"resources"`
	Services  []domain.Service `json:"services"`
}

// seedResource reads override dates as YYYY-MM-DD.
type seedResource struct {
	domain.Resource
	Overrides []seedOverride `json:"overrides"`
}

type seedOverride struct {
	Date        string `json:"date"`
	Closed      bool   `json:"closed"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Reason      string `json:"reason,omitempty"`
}

func loadSeed(path string) (seed, error) {
	if path == "" {
		return seed{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return seed{}, err
	}
	var f seedFile
	if err := json.Unmarshal(b, &f); err != nil {
		return seed{}, fmt.Errorf("parse seed %s: %w", path, err)
	}

	s := seed{Services: f.Services}
	for _, sr := range f.Resources {
		res := sr.Resource
		res.Overrides = nil
		for _, o := range sr.Overrides {
			d, err := domain.ParseDate(o.Date)
			if err != nil {
				return seed{}, fmt.Errorf("parse seed %s: resource %s: %w", path, res.ID, err)
			}
			res.Overrides = append(res.Overrides, domain.DateOverride{
				ResourceID:  res.ID,
				Date:        time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC),
				Closed:      o.Closed,
				StartMinute: o.StartMinute,
				EndMinute:   o.EndMinute,
				Reason:      o.Reason,
			})
		}
		s.Resources = append(s.Resources, res)
	}
	return s, nil
}

// openStorage wires the ledger and calendar sources for the configured driver, with the
// redis read-through cache in front of calendar reads when redis.url is set.
func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (storage, error) {
	var st storage

	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		sd, err := loadSeed(cfg.SeedFile)
		if err != nil {
			return storage{}, err
		}
		st.ledger = memory.NewLedger(memory.WithEventSink(func(evt domain.Event) {
			log.Debug("event recorded", slog.String("event_type", evt.Type), slog.String("appointment_id", evt.AppointmentID.String()))
		}))
		st.calendar = memory.NewCalendar(sd.Resources...)
		st.catalog = memory.NewCatalog(sd.Services...)
		log.Info("using in-memory storage", slog.Int("resources", len(sd.Resources)), slog.Int("services", len(sd.Services)))

	default:
		log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
		db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
			log.Error("database connection failed", args...)
			return storage{}, err
		}
		st.db = db
		st.outbox = outbox.NewRepository()
		st.closer = append(st.closer, func() error { return postgres.Close(db) })
		st.ledger = postgres.NewAppointmentRepo(db, st.outbox)
		st.calendar = postgres.NewCalendarRepo(db)
		st.catalog = postgres.NewCatalogRepo(db)
		st.checks = append(st.checks, rest.ReadyCheck{Name: "postgres", Check: postgres.ReadyCheck(db)})
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			st.close()
			return storage{}, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable; calendar cache will fail open", slog.Any("err", err))
		}
		cacheCfg := rediscache.Config{TTL: cfg.CacheTTL}
		st.calendar = rediscache.NewCalendar(st.calendar, rdb, log, cacheCfg)
		st.catalog = rediscache.NewCatalog(st.catalog, rdb, log, cacheCfg)
		st.closer = append(st.closer, rdb.Close)
		st.checks = append(st.checks, rest.ReadyCheck{Name: "redis", Check: rediscache.ReadyCheck(rdb)})
	}

	if cfg.KafkaBrokers != "" {
		st.checks = append(st.checks, rest.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkax.SplitBrokers(cfg.KafkaBrokers))})
	}
	return st, nil
}

func newService(cfg config.Config, st storage, log *slog.Logger) *appointments.Service {
	return appointments.NewService(st.ledger, st.calendar, st.catalog,
		appointments.WithLogger(log),
		appointments.WithConfig(appointments.Config{
			DefaultStep:          cfg.Scheduling.SlotStep,
			RetryAttempts:        cfg.Scheduling.RetryAttempts,
			RetryInitialInterval: cfg.Scheduling.RetryInitialInterval,
			SearchHorizon:        cfg.Scheduling.SearchHorizonDays,
			ReminderLead:         cfg.Sweep.ReminderLead,
			ReminderWidth:        cfg.Sweep.ReminderWidth,
			NoShowGrace:          cfg.Sweep.NoShowGrace,
			SweepBatch:           cfg.Sweep.BatchSize,
		}),
	)
}
