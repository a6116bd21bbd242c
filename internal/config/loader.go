// Package config loads the engine's runtime configuration from the process
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the meeting
// scheduler service.
type Config struct {
	SQLiteDSN             string
	LogLevel              string
	WorkingHoursStart     int
	WorkingHoursEnd       int
	SuggestionHorizonDays int
	MaxSuggestions        int
	SweepInterval         time.Duration
	ReminderPollInterval  time.Duration
	ReminderLeadMinutes   []int
}

// Load parses configuration values from the current process environment.
//
// Every value has a sensible default; set values are validated and all
// invalid entries are reported together in one error.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN:             "file:meetings.db?_foreign_keys=on",
		LogLevel:              "info",
		WorkingHoursStart:     9,
		WorkingHoursEnd:       17,
		SuggestionHorizonDays: 14,
		MaxSuggestions:        10,
		SweepInterval:         time.Minute,
		ReminderPollInterval:  30 * time.Second,
		ReminderLeadMinutes:   []int{30, 10},
	}

	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if level := strings.TrimSpace(os.Getenv("SCHEDULER_LOG_LEVEL")); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_WORKING_HOURS_START")); value != "" {
		hour, err := strconv.Atoi(value)
		if err != nil || hour < 0 || hour > 23 {
			invalid = append(invalid, "SCHEDULER_WORKING_HOURS_START")
		} else {
			cfg.WorkingHoursStart = hour
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_WORKING_HOURS_END")); value != "" {
		hour, err := strconv.Atoi(value)
		if err != nil || hour < 1 || hour > 24 {
			invalid = append(invalid, "SCHEDULER_WORKING_HOURS_END")
		} else {
			cfg.WorkingHoursEnd = hour
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_SUGGESTION_HORIZON_DAYS")); value != "" {
		days, err := strconv.Atoi(value)
		if err != nil || days <= 0 {
			invalid = append(invalid, "SCHEDULER_SUGGESTION_HORIZON_DAYS")
		} else {
			cfg.SuggestionHorizonDays = days
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_MAX_SUGGESTIONS")); value != "" {
		max, err := strconv.Atoi(value)
		if err != nil || max <= 0 {
			invalid = append(invalid, "SCHEDULER_MAX_SUGGESTIONS")
		} else {
			cfg.MaxSuggestions = max
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_SWEEP_INTERVAL")); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "SCHEDULER_SWEEP_INTERVAL")
		} else {
			cfg.SweepInterval = interval
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_REMINDER_POLL_INTERVAL")); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "SCHEDULER_REMINDER_POLL_INTERVAL")
		} else {
			cfg.ReminderPollInterval = interval
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_REMINDER_LEAD_MINUTES")); value != "" {
		leads, err := parseLeadMinutes(value)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_REMINDER_LEAD_MINUTES")
		} else {
			cfg.ReminderLeadMinutes = leads
		}
	}

	if cfg.WorkingHoursStart >= cfg.WorkingHoursEnd {
		invalid = append(invalid, "SCHEDULER_WORKING_HOURS_START/SCHEDULER_WORKING_HOURS_END")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// parseLeadMinutes parses a comma separated list of non-negative minute
// values, e.g. "30,10".
func parseLeadMinutes(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	leads := make([]int, 0, len(parts))
	for _, part := range parts {
		minutes, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if minutes < 0 {
			return nil, fmt.Errorf("negative lead minutes %d", minutes)
		}
		leads = append(leads, minutes)
	}
	return leads, nil
}
