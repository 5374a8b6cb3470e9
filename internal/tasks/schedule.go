package tasks

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gopkg.in/yaml.v3"
)

// Schedule is the worker's cron file.
//
//	timezone: America/New_York
//	idempotency_cleanup: "@hourly"
//	organizations:
//	  - id: 4b7c...
//	    rent: "0 6 1 * *"
//	    late_fees: "0 7 * * *"
type Schedule struct {
	Timezone           string                 `yaml:"timezone"`
	IdempotencyCleanup string                 `yaml:"idempotency_cleanup"`
	Organizations      []OrganizationSchedule `yaml:"organizations"`
}

// OrganizationSchedule holds one organization's cron specs. An empty spec
// disables that job for the organization.
type OrganizationSchedule struct {
	ID       uuid.UUID `yaml:"id"`
	Rent     string    `yaml:"rent"`
	LateFees string    `yaml:"late_fees"`
}

const defaultCleanupSpec = "@hourly"

func LoadSchedule(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadSchedule: %w", err)
	}
	s, err := ParseSchedule(data)
	if err != nil {
		return nil, fmt.Errorf("LoadSchedule %s: %w", path, err)
	}
	return s, nil
}

func ParseSchedule(data []byte) (*Schedule, error) {
	var s Schedule
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("ParseSchedule: %w", err)
	}
	if s.IdempotencyCleanup == "" {
		s.IdempotencyCleanup = defaultCleanupSpec
	}

	seen := make(map[uuid.UUID]bool, len(s.Organizations))
	for i, org := range s.Organizations {
		if org.ID == uuid.Nil {
			return nil, fmt.Errorf("ParseSchedule: organizations[%d]: id required", i)
		}
		if seen[org.ID] {
			return nil, fmt.Errorf("ParseSchedule: organization %s listed twice", org.ID)
		}
		seen[org.ID] = true
		if strings.TrimSpace(org.Rent) == "" && strings.TrimSpace(org.LateFees) == "" {
			return nil, fmt.Errorf("ParseSchedule: organization %s: no jobs scheduled", org.ID)
		}
	}
	return &s, nil
}

// registrar is the part of *asynq.Scheduler the schedule needs.
type registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// Register adds every entry to the scheduler. Billing tasks carry no period;
// the handler resolves it when the task runs.
func (s *Schedule) Register(r registrar) (int, error) {
	var (
		n    int
		errs []error
	)
	add := func(spec string, task *asynq.Task, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		if _, err := r.Register(spec, task); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", task.Type(), spec, err))
			return
		}
		n++
	}

	add(s.IdempotencyCleanup, NewIdempotencyCleanupTask(), nil)
	for _, org := range s.Organizations {
		if org.Rent != "" {
			task, err := NewRentGenerateTask(org.ID, "")
			add(org.Rent, task, err)
		}
		if org.LateFees != "" {
			task, err := NewLateFeeApplyTask(org.ID, "")
			add(org.LateFees, task, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return n, fmt.Errorf("Schedule.Register: %w", err)
	}
	return n, nil
}
