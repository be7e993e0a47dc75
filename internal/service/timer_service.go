package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"multitimer/internal/config"
	apperrors "multitimer/internal/errors"
	"multitimer/internal/feed"
	"multitimer/internal/model"
	"multitimer/internal/repository"
)

// TimerFeed is the snapshot pushed to watchers after every change to a
// user's timers.
type TimerFeed struct {
	Timers  []model.Timer       `json:"timers"`
	Presets []model.PresetTimer `json:"presets"`
}

type TimerService struct {
	repo   *repository.TimerRepository
	limits config.Limits
	feed   *feed.Hub[TimerFeed]
	logger *log.Logger

	// snapshotTaken, when set, runs between reading and delivering a
	// watcher's first snapshot.
	snapshotTaken func()
}

type UpdateTimerInput struct {
	Name             *string
	NotificationType *string
}

func NewTimerService(
	repo *repository.TimerRepository,
	limits config.Limits,
	hub *feed.Hub[TimerFeed],
	logger *log.Logger,
) *TimerService {
	if hub == nil {
		hub = feed.NewHub[TimerFeed]()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TimerService{repo: repo, limits: limits, feed: hub, logger: logger}
}

// List returns the user's timers for display. An empty list yields one
// placeholder row with ListTypeInitial.
func (s *TimerService) List(ctx context.Context, userID string) ([]model.Timer, *apperrors.APIError) {
	timers, err := s.repo.ListTimers(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list timers")
	}
	return listRows(timers), nil
}

// Snapshot returns every timer and preset the user owns.
func (s *TimerService) Snapshot(ctx context.Context, userID string) (*TimerFeed, *apperrors.APIError) {
	timers, err := s.repo.ListTimers(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list timers")
	}
	presets, err := s.repo.ListPresetsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list preset timers")
	}
	return &TimerFeed{Timers: timers, Presets: presets}, nil
}

// Watch registers fn for snapshots of the user's timers. The current state is
// delivered before Watch returns. A change published while that state is being
// read is followed by a fresh snapshot so fn never ends on stale data.
func (s *TimerService) Watch(ctx context.Context, userID string, fn func(TimerFeed)) (func(), *apperrors.APIError) {
	var (
		mu     sync.Mutex
		ready  bool
		missed bool
	)
	unsubscribe := s.feed.Subscribe(userID, func(snapshot TimerFeed) {
		mu.Lock()
		defer mu.Unlock()
		if !ready {
			missed = true
			return
		}
		fn(snapshot)
	})

	snapshot, apiErr := s.Snapshot(ctx, userID)
	if apiErr != nil {
		unsubscribe()
		return nil, apiErr
	}
	if s.snapshotTaken != nil {
		s.snapshotTaken()
	}

	mu.Lock()
	defer mu.Unlock()
	fn(*snapshot)
	if missed {
		fresh, apiErr := s.Snapshot(ctx, userID)
		if apiErr != nil {
			unsubscribe()
			return nil, apiErr
		}
		fn(*fresh)
	}
	ready = true
	return unsubscribe, nil
}

func (s *TimerService) Get(ctx context.Context, userID, name string) (*model.TimerWithPresets, *apperrors.APIError) {
	timer, err := s.repo.GetTimerWithPresets(ctx, userID, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, timerNotFound(name)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get timer")
	}
	return timer, nil
}

func (s *TimerService) Create(ctx context.Context, userID, rawName string) (*model.TimerWithPresets, *apperrors.APIError) {
	name, apiErr := validateName(s.limits, "timer name", rawName)
	if apiErr != nil {
		return nil, apiErr
	}

	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	if apiErr := s.ensureTimerCapacity(ctx, tx, userID, 1); apiErr != nil {
		return nil, apiErr
	}

	timer := model.Timer{
		ID:               uuid.NewString(),
		UserID:           userID,
		Name:             name,
		NotificationType: model.NotificationVibration,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	applySummary(&timer, nil)
	if err := s.repo.InsertTimerTx(ctx, tx, &timer); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, duplicateName(name)
		}
		return nil, apperrors.Internal("failed to create timer")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	s.publish(userID)
	return &model.TimerWithPresets{Timer: timer, Presets: []model.PresetTimer{}}, nil
}

// Update renames a timer and/or changes its notification type. Presets keep
// pointing at the timer through its id, so a rename is a single row update.
func (s *TimerService) Update(ctx context.Context, userID, name string, input UpdateTimerInput) (*model.TimerWithPresets, *apperrors.APIError) {
	var newName string
	if input.Name != nil {
		validated, apiErr := validateName(s.limits, "timer name", *input.Name)
		if apiErr != nil {
			return nil, apiErr
		}
		newName = validated
	}
	var notificationType model.NotificationType
	if input.NotificationType != nil {
		value, apiErr := validateNotificationType(*input.NotificationType)
		if apiErr != nil {
			return nil, apiErr
		}
		notificationType = value
	}

	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	timer, apiErr := s.getTimerTx(ctx, tx, userID, name)
	if apiErr != nil {
		return nil, apiErr
	}

	if newName != "" && newName != timer.Name {
		timer.Name = newName
	}
	if notificationType != "" {
		timer.NotificationType = notificationType
	}
	timer.UpdatedAt = now

	if err := s.repo.UpdateTimerTx(ctx, tx, timer); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, duplicateName(newName)
		}
		return nil, apperrors.Internal("failed to update timer")
	}
	presets, err := s.repo.ListPresetsTx(ctx, tx, timer.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to list preset timers")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	s.publish(userID)
	return &model.TimerWithPresets{Timer: *timer, Presets: presets}, nil
}

func (s *TimerService) Delete(ctx context.Context, userID, name string) *apperrors.APIError {
	_, apiErr := s.DeleteMany(ctx, userID, []string{name})
	return apiErr
}

// DeleteMany removes the named timers together with their presets. Either all
// of them are removed or none is.
func (s *TimerService) DeleteMany(ctx context.Context, userID string, names []string) (int, *apperrors.APIError) {
	if len(names) == 0 {
		return 0, apperrors.BadRequest("empty_selection", "no timers selected")
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return 0, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	deleted := 0
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		timer, apiErr := s.getTimerTx(ctx, tx, userID, name)
		if apiErr != nil {
			return 0, apiErr
		}
		if err := s.repo.DeleteTimerTx(ctx, tx, timer.ID); err != nil {
			return 0, apperrors.Internal("failed to delete timer")
		}
		deleted++
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Internal("failed to commit transaction")
	}
	s.publish(userID)
	return deleted, nil
}

// AddPreset appends a preset timer after the timer's existing presets.
func (s *TimerService) AddPreset(ctx context.Context, userID, name string, input PresetInput) (*model.TimerWithPresets, *apperrors.APIError) {
	input, apiErr := validatePreset(s.limits, input)
	if apiErr != nil {
		return nil, apiErr
	}

	return s.mutatePresets(ctx, userID, name, func(presets []model.PresetTimer, now time.Time) ([]model.PresetTimer, *apperrors.APIError) {
		if s.limits.MaxPresets > 0 && len(presets) >= s.limits.MaxPresets {
			return nil, apperrors.BadRequest(
				"too_many_presets",
				fmt.Sprintf("a timer can hold at most %d preset timers", s.limits.MaxPresets),
			)
		}
		return append(presets, model.PresetTimer{
			ID:                     uuid.NewString(),
			PresetName:             input.PresetName,
			PresetTimeMillis:       input.PresetTimeMillis,
			NotificationTimeMillis: input.NotificationTimeMillis,
			CreatedAt:              now,
		}), nil
	})
}

// UpdatePreset edits the preset at the given 1-based order.
func (s *TimerService) UpdatePreset(ctx context.Context, userID, name string, order int, input PresetInput) (*model.TimerWithPresets, *apperrors.APIError) {
	input, apiErr := validatePreset(s.limits, input)
	if apiErr != nil {
		return nil, apiErr
	}

	return s.mutatePresets(ctx, userID, name, func(presets []model.PresetTimer, _ time.Time) ([]model.PresetTimer, *apperrors.APIError) {
		index, apiErr := presetIndex(presets, order)
		if apiErr != nil {
			return nil, apiErr
		}
		presets[index].PresetName = input.PresetName
		presets[index].PresetTimeMillis = input.PresetTimeMillis
		presets[index].NotificationTimeMillis = input.NotificationTimeMillis
		return presets, nil
	})
}

func (s *TimerService) DeletePreset(ctx context.Context, userID, name string, order int) (*model.TimerWithPresets, *apperrors.APIError) {
	return s.DeletePresets(ctx, userID, name, []int{order})
}

// DeletePresets removes the presets at the given 1-based orders and closes
// the gaps they leave.
func (s *TimerService) DeletePresets(ctx context.Context, userID, name string, orders []int) (*model.TimerWithPresets, *apperrors.APIError) {
	if len(orders) == 0 {
		return nil, apperrors.BadRequest("empty_selection", "no preset timers selected")
	}

	return s.mutatePresets(ctx, userID, name, func(presets []model.PresetTimer, _ time.Time) ([]model.PresetTimer, *apperrors.APIError) {
		drop := make(map[int]struct{}, len(orders))
		for _, order := range orders {
			if _, apiErr := presetIndex(presets, order); apiErr != nil {
				return nil, apiErr
			}
			drop[order] = struct{}{}
		}

		kept := presets[:0]
		for _, preset := range presets {
			if _, ok := drop[preset.TimerOrder]; !ok {
				kept = append(kept, preset)
			}
		}
		return kept, nil
	})
}

// MovePreset moves the preset at position from to position to. Positions are
// 0-based indexes into the ordered preset list.
func (s *TimerService) MovePreset(ctx context.Context, userID, name string, from, to int) (*model.TimerWithPresets, *apperrors.APIError) {
	return s.mutatePresets(ctx, userID, name, func(presets []model.PresetTimer, _ time.Time) ([]model.PresetTimer, *apperrors.APIError) {
		if from < 0 || from >= len(presets) || to < 0 || to >= len(presets) {
			return nil, apperrors.BadRequest(
				"invalid_order",
				fmt.Sprintf("positions must be between 0 and %d", len(presets)-1),
			)
		}
		moved := presets[from]
		presets = append(presets[:from], presets[from+1:]...)
		presets = append(presets[:to], append([]model.PresetTimer{moved}, presets[to:]...)...)
		return presets, nil
	})
}

// Import creates the given timers with their presets in one transaction.
// Presets are numbered by their position in each timer's slice.
func (s *TimerService) Import(ctx context.Context, userID string, timers []model.TimerWithPresets) ([]model.Timer, *apperrors.APIError) {
	if len(timers) == 0 {
		return nil, apperrors.BadRequest("empty_import", "import contains no timers")
	}

	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	if apiErr := s.ensureTimerCapacity(ctx, tx, userID, len(timers)); apiErr != nil {
		return nil, apiErr
	}

	created := make([]model.Timer, 0, len(timers))
	for i, draft := range timers {
		// Timers list in creation order, so keep the document's order.
		createdAt := now.Add(time.Duration(i) * time.Microsecond)
		name, apiErr := validateName(s.limits, "timer name", draft.Name)
		if apiErr != nil {
			return nil, apiErr
		}
		notificationType := model.NotificationVibration
		if draft.NotificationType != "" {
			if notificationType, apiErr = validateNotificationType(string(draft.NotificationType)); apiErr != nil {
				return nil, apiErr
			}
		}
		if s.limits.MaxPresets > 0 && len(draft.Presets) > s.limits.MaxPresets {
			return nil, apperrors.BadRequest(
				"too_many_presets",
				fmt.Sprintf("timer %q has more than %d preset timers", name, s.limits.MaxPresets),
			)
		}

		timer := model.Timer{
			ID:               uuid.NewString(),
			UserID:           userID,
			Name:             name,
			NotificationType: notificationType,
			CreatedAt:        createdAt,
			UpdatedAt:        createdAt,
		}
		presets := make([]model.PresetTimer, 0, len(draft.Presets))
		for j, preset := range draft.Presets {
			input, apiErr := validatePreset(s.limits, PresetInput{
				PresetName:             preset.PresetName,
				PresetTimeMillis:       preset.PresetTimeMillis,
				NotificationTimeMillis: preset.NotificationTimeMillis,
			})
			if apiErr != nil {
				return nil, apiErr
			}
			presets = append(presets, model.PresetTimer{
				ID:                     uuid.NewString(),
				TimerID:                timer.ID,
				TimerName:              name,
				PresetName:             input.PresetName,
				TimerOrder:             j + 1,
				PresetTimeMillis:       input.PresetTimeMillis,
				NotificationTimeMillis: input.NotificationTimeMillis,
				CreatedAt:              createdAt,
				UpdatedAt:              createdAt,
			})
		}
		applySummary(&timer, presets)

		if err := s.repo.InsertTimerTx(ctx, tx, &timer); err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, duplicateName(name)
			}
			return nil, apperrors.Internal("failed to import timer")
		}
		if err := s.repo.InsertPresetsTx(ctx, tx, presets); err != nil {
			return nil, apperrors.Internal("failed to import preset timers")
		}
		created = append(created, timer)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	s.publish(userID)
	return created, nil
}

type presetMutation func(presets []model.PresetTimer, now time.Time) ([]model.PresetTimer, *apperrors.APIError)

// mutatePresets loads a timer's presets, applies mutate and writes the result
// back renumbered 1..n, with the timer's derived fields recomputed in the same
// transaction.
func (s *TimerService) mutatePresets(ctx context.Context, userID, name string, mutate presetMutation) (*model.TimerWithPresets, *apperrors.APIError) {
	now := time.Now().UTC()
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	timer, apiErr := s.getTimerTx(ctx, tx, userID, name)
	if apiErr != nil {
		return nil, apiErr
	}
	presets, err := s.repo.ListPresetsTx(ctx, tx, timer.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to list preset timers")
	}
	sort.SliceStable(presets, func(i, j int) bool {
		return presets[i].TimerOrder < presets[j].TimerOrder
	})

	presets, apiErr = mutate(presets, now)
	if apiErr != nil {
		return nil, apiErr
	}

	for i := range presets {
		presets[i].TimerID = timer.ID
		presets[i].TimerName = timer.Name
		presets[i].TimerOrder = i + 1
		presets[i].UpdatedAt = now
	}

	if err := s.repo.DeletePresetsByTimerTx(ctx, tx, timer.ID); err != nil {
		return nil, apperrors.Internal("failed to rewrite preset timers")
	}
	if err := s.repo.InsertPresetsTx(ctx, tx, presets); err != nil {
		return nil, apperrors.Internal("failed to rewrite preset timers")
	}

	applySummary(timer, presets)
	timer.UpdatedAt = now
	if err := s.repo.UpdateTimerTx(ctx, tx, timer); err != nil {
		return nil, apperrors.Internal("failed to update timer")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	s.publish(userID)

	if presets == nil {
		presets = []model.PresetTimer{}
	}
	return &model.TimerWithPresets{Timer: *timer, Presets: presets}, nil
}

func (s *TimerService) getTimerTx(ctx context.Context, tx *sql.Tx, userID, name string) (*model.Timer, *apperrors.APIError) {
	timer, err := s.repo.GetTimerTx(ctx, tx, userID, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, timerNotFound(name)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get timer")
	}
	return timer, nil
}

func (s *TimerService) ensureTimerCapacity(ctx context.Context, tx *sql.Tx, userID string, adding int) *apperrors.APIError {
	if s.limits.MaxTimers <= 0 {
		return nil
	}
	count, err := s.repo.CountTimersTx(ctx, tx, userID)
	if err != nil {
		return apperrors.Internal("failed to count timers")
	}
	if count+adding > s.limits.MaxTimers {
		return apperrors.BadRequest(
			"too_many_timers",
			fmt.Sprintf("at most %d timers are allowed", s.limits.MaxTimers),
		)
	}
	return nil
}

// publish pushes a fresh snapshot to the user's watchers. It runs after the
// commit, so a failure here never undoes a mutation.
func (s *TimerService) publish(userID string) {
	if s.feed.Count(userID) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshot, apiErr := s.Snapshot(ctx, userID)
	if apiErr != nil {
		s.logger.Printf("publish timer feed for %s: %s", userID, apiErr.Message)
		return
	}
	s.feed.Publish(userID, *snapshot)
}

func presetIndex(presets []model.PresetTimer, order int) (int, *apperrors.APIError) {
	for i, preset := range presets {
		if preset.TimerOrder == order {
			return i, nil
		}
	}
	return 0, apperrors.NotFound("preset_not_found", fmt.Sprintf("preset timer %d not found", order))
}

func timerNotFound(name string) *apperrors.APIError {
	return apperrors.NotFound("timer_not_found", fmt.Sprintf("timer %q not found", name))
}
