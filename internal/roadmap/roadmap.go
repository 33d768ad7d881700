// Package roadmap manages the action roadmap list. It is a plain record
// list with display ordering; no business rule guards it.
package roadmap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
)

// ErrEmptyTask is returned when an action has no task text.
var ErrEmptyTask = errors.New("action task must not be empty")

// Store is the durable actions collection.
type Store interface {
	InsertAction(ctx context.Context, a models.Action) error
	ListActions(ctx context.Context) ([]models.Action, error)
}

// Filter narrows the roadmap listing. Zero values match everything.
type Filter struct {
	Phase   string
	Status  string
	Segment string
	Query   string // case-insensitive substring match on task
}

// Service provides roadmap operations.
type Service struct {
	store Store
}

// NewService creates a roadmap service over the given store.
func NewService(s Store) *Service {
	return &Service{store: s}
}

// Add stores a new action with a fresh id.
func (s *Service) Add(ctx context.Context, a models.Action) (models.Action, error) {
	if strings.TrimSpace(a.Task) == "" {
		return models.Action{}, ErrEmptyTask
	}

	a.ID = uuid.New().String()
	if a.Status == "" {
		a.Status = "planned"
	}

	if err := s.store.InsertAction(ctx, a); err != nil {
		return models.Action{}, fmt.Errorf("failed to add action: %w", err)
	}

	return a, nil
}

// List returns actions matching the filter, ordered by phase rank then due
// date then task.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Action, error) {
	all, err := s.store.ListActions(ctx)
	if err != nil {
		return nil, err
	}

	var actions []models.Action
	for _, a := range all {
		if f.Phase != "" && a.Phase != f.Phase {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Segment != "" && a.Segment != f.Segment {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(a.Task), strings.ToLower(f.Query)) {
			continue
		}
		actions = append(actions, a)
	}

	sort.SliceStable(actions, func(i, j int) bool {
		ri, rj := models.PhaseRank(actions[i].Phase), models.PhaseRank(actions[j].Phase)
		if ri != rj {
			return ri < rj
		}
		if actions[i].DueDate != actions[j].DueDate {
			return actions[i].DueDate < actions[j].DueDate
		}
		return actions[i].Task < actions[j].Task
	})

	return actions, nil
}
