package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"multitimer/internal/alert"
	"multitimer/internal/countdown"
	apperrors "multitimer/internal/errors"
	"multitimer/internal/feed"
	"multitimer/internal/model"
	"multitimer/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	alertQueueLimit     = 64
	subscriberBuffer    = 256
)

// RunView is the client-facing state of a timer run.
type RunView struct {
	ID                     string                 `json:"id"`
	TimerID                string                 `json:"timerId"`
	TimerName              string                 `json:"timerName"`
	Status                 string                 `json:"status"`
	NotificationType       model.NotificationType `json:"notificationType"`
	PresetName             string                 `json:"presetName"`
	TimerOrder             int                    `json:"timerOrder"`
	SegmentRemainingMillis int64                  `json:"segmentRemainingMillis"`
	TotalRemainingMillis   int64                  `json:"totalRemainingMillis"`
	ElapsedMillis          int64                  `json:"elapsedMillis"`
	PlannedMillis          int64                  `json:"plannedMillis"`
	RemainingSegments      int                    `json:"remainingSegments"`
	PendingAlerts          int                    `json:"pendingAlerts"`
	StartedAt              time.Time              `json:"startedAt"`
	EndedAt                *time.Time             `json:"endedAt,omitempty"`
	ServerTime             time.Time              `json:"serverTime"`
}

type RunOptions struct {
	TickInterval time.Duration
	Clock        countdown.Clock
	Logger       *log.Logger
}

// RunService owns the countdowns that are currently running. Each run is
// driven by a countdown.Runner; a pump goroutine per run turns milestones into
// alerts and records the outcome in the run history.
type RunService struct {
	timers  *repository.TimerRepository
	history *repository.RunRepository
	options RunOptions
	events  *feed.Hub[countdown.Event]

	mu      sync.Mutex
	runs    map[string]*activeRun
	byTimer map[string]string
	wg      sync.WaitGroup
}

type activeRun struct {
	record           model.TimerRun
	notificationType model.NotificationType
	runner           *countdown.Runner
	alerts           *alert.Queue
	recorded         chan struct{}
	finished         chan struct{}
}

func NewRunService(timers *repository.TimerRepository, history *repository.RunRepository, options RunOptions) *RunService {
	if options.TickInterval <= 0 {
		options.TickInterval = countdown.DefaultTickInterval
	}
	if options.Clock == nil {
		options.Clock = countdown.SystemClock()
	}
	if options.Logger == nil {
		options.Logger = log.Default()
	}
	return &RunService{
		timers:  timers,
		history: history,
		options: options,
		events:  feed.NewHub[countdown.Event](),
		runs:    make(map[string]*activeRun),
		byTimer: make(map[string]string),
	}
}

// Start begins counting down the named timer. A timer can have only one
// unfinished run at a time.
func (s *RunService) Start(ctx context.Context, userID, timerName string) (*RunView, *apperrors.APIError) {
	timer, err := s.timers.GetTimerWithPresets(ctx, userID, timerName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, timerNotFound(timerName)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get timer")
	}
	if len(timer.Presets) == 0 {
		return nil, apperrors.BadRequest("no_presets", fmt.Sprintf("timer %q has no preset timers", timer.Name))
	}

	engine, err := countdown.New(timer.Name, timer.Presets)
	if err != nil {
		return nil, apperrors.BadRequest("no_presets", err.Error())
	}

	s.mu.Lock()
	if runID, ok := s.byTimer[timer.ID]; ok {
		if existing := s.runs[runID]; existing != nil && !isDone(existing) {
			s.mu.Unlock()
			return nil, apperrors.Conflict("run_in_progress", "timer is already running", map[string]string{"runId": runID})
		}
		delete(s.runs, runID)
		delete(s.byTimer, timer.ID)
	}

	now := s.options.Clock.Now().UTC()
	run := &activeRun{
		record: model.TimerRun{
			ID:            uuid.NewString(),
			UserID:        userID,
			TimerID:       timer.ID,
			TimerName:     timer.Name,
			Status:        model.RunStatusRunning,
			PlannedMillis: timer.TotalMillis,
			StartedAt:     now,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		notificationType: timer.NotificationType,
		runner: countdown.NewRunner(engine, countdown.Config{
			TickInterval: s.options.TickInterval,
			Clock:        s.options.Clock,
		}),
		alerts:   alert.NewQueue(alertQueueLimit),
		recorded: make(chan struct{}),
		finished: make(chan struct{}),
	}

	// The run becomes visible only once its loop and pump are running.
	events := run.runner.Subscribe(subscriberBuffer)
	if err := run.runner.Start(context.Background()); err != nil {
		s.mu.Unlock()
		return nil, apperrors.Internal("failed to start countdown")
	}
	s.wg.Add(1)
	go s.pump(run, events)

	s.runs[run.record.ID] = run
	s.byTimer[timer.ID] = run.record.ID
	s.mu.Unlock()

	if err := s.history.InsertRun(ctx, &run.record); err != nil {
		s.options.Logger.Printf("record run %s: %v", run.record.ID, err)
	}
	close(run.recorded)

	view := s.view(run)
	return &view, nil
}

func (s *RunService) Get(ctx context.Context, userID, runID string) (*RunView, *apperrors.APIError) {
	if run, ok := s.lookup(userID, runID); ok {
		view := s.view(run)
		return &view, nil
	}

	record, err := s.history.GetRun(ctx, runID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && record.UserID != userID) {
		return nil, runNotFound(runID)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get run")
	}
	view := historyView(*record)
	return &view, nil
}

// List returns the user's runs still held in memory, oldest first.
func (s *RunService) List(userID string) []RunView {
	s.mu.Lock()
	runs := make([]*activeRun, 0, len(s.runs))
	for _, run := range s.runs {
		if run.record.UserID == userID {
			runs = append(runs, run)
		}
	}
	s.mu.Unlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].record.StartedAt.Before(runs[j].record.StartedAt)
	})
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, s.view(run))
	}
	return views
}

func (s *RunService) Pause(userID, runID string) (*RunView, *apperrors.APIError) {
	return s.control(userID, runID, (*countdown.Runner).Pause)
}

func (s *RunService) Resume(userID, runID string) (*RunView, *apperrors.APIError) {
	return s.control(userID, runID, (*countdown.Runner).Resume)
}

// Cancel stops a run. Cancelling a run that already ended is a no-op.
func (s *RunService) Cancel(userID, runID string) (*RunView, *apperrors.APIError) {
	run, ok := s.lookup(userID, runID)
	if !ok {
		return nil, runNotFound(runID)
	}
	run.runner.Cancel()
	<-run.finished
	view := s.view(run)
	return &view, nil
}

// TakeAlerts returns the run's pending alerts and clears them. A finished run
// stays available until its timer is started again.
func (s *RunService) TakeAlerts(userID, runID string) ([]alert.Alert, *apperrors.APIError) {
	run, ok := s.lookup(userID, runID)
	if !ok {
		return nil, runNotFound(runID)
	}
	return run.alerts.Take(), nil
}

// Subscribe registers fn for the run's countdown events. The returned channel
// is closed when the run ends.
func (s *RunService) Subscribe(userID, runID string, fn func(countdown.Event)) (func(), <-chan struct{}, *apperrors.APIError) {
	run, ok := s.lookup(userID, runID)
	if !ok {
		return nil, nil, runNotFound(runID)
	}
	return s.events.Subscribe(runID, fn), run.finished, nil
}

func (s *RunService) History(ctx context.Context, userID string, limit int) ([]model.TimerRun, *apperrors.APIError) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	runs, err := s.history.ListRuns(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list runs")
	}
	return runs, nil
}

// Close cancels every run and waits for their history to be written.
func (s *RunService) Close() {
	s.mu.Lock()
	runs := make([]*activeRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	s.mu.Unlock()

	for _, run := range runs {
		run.runner.Cancel()
	}
	s.wg.Wait()
}

func (s *RunService) control(userID, runID string, op func(*countdown.Runner) (countdown.Snapshot, error)) (*RunView, *apperrors.APIError) {
	run, ok := s.lookup(userID, runID)
	if !ok {
		return nil, runNotFound(runID)
	}
	if _, err := op(run.runner); err != nil {
		if errors.Is(err, countdown.ErrStopped) {
			return nil, apperrors.Conflict("run_ended", "run has already ended", nil)
		}
		return nil, apperrors.Internal("failed to control run")
	}
	view := s.view(run)
	return &view, nil
}

func (s *RunService) pump(run *activeRun, events <-chan countdown.Event) {
	defer s.wg.Done()
	defer close(run.finished)

	for event := range events {
		if kind, ok := alertKind(event.Type); ok {
			run.alerts.Push(alert.Alert{
				Kind:             kind,
				TimerName:        event.TimerName,
				PresetName:       event.PresetName,
				TimerOrder:       event.TimerOrder,
				NotificationType: run.notificationType,
				At:               event.At,
			})
		}
		s.events.Publish(run.record.ID, event)
	}

	snapshot := run.runner.Snapshot()
	now := s.options.Clock.Now().UTC()

	// The opening row is written by Start after the loop is already running.
	<-run.recorded

	s.mu.Lock()
	run.record.Status = runStatus(snapshot.Status)
	run.record.ElapsedMillis = snapshot.Elapsed.Milliseconds()
	run.record.EndedAt = &now
	run.record.UpdatedAt = now
	record := run.record
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.UpdateRun(ctx, &record); err != nil {
		s.options.Logger.Printf("record end of run %s: %v", record.ID, err)
	}
}

func (s *RunService) lookup(userID, runID string) (*activeRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok || run.record.UserID != userID {
		return nil, false
	}
	return run, true
}

func (s *RunService) view(run *activeRun) RunView {
	snapshot := run.runner.Snapshot()

	s.mu.Lock()
	record := run.record
	s.mu.Unlock()

	status := runStatus(snapshot.Status)
	return RunView{
		ID:                     record.ID,
		TimerID:                record.TimerID,
		TimerName:              record.TimerName,
		Status:                 status,
		NotificationType:       run.notificationType,
		PresetName:             snapshot.PresetName,
		TimerOrder:             snapshot.TimerOrder,
		SegmentRemainingMillis: snapshot.SegmentRemaining.Milliseconds(),
		TotalRemainingMillis:   snapshot.TotalRemaining.Milliseconds(),
		ElapsedMillis:          snapshot.Elapsed.Milliseconds(),
		PlannedMillis:          snapshot.Planned.Milliseconds(),
		RemainingSegments:      snapshot.RemainingSegments,
		PendingAlerts:          run.alerts.Len(),
		StartedAt:              record.StartedAt,
		EndedAt:                record.EndedAt,
		ServerTime:             s.options.Clock.Now().UTC(),
	}
}

func historyView(record model.TimerRun) RunView {
	remaining := record.PlannedMillis - record.ElapsedMillis
	if remaining < 0 || record.Status == model.RunStatusCancelled {
		remaining = 0
	}
	return RunView{
		ID:                   record.ID,
		TimerID:              record.TimerID,
		TimerName:            record.TimerName,
		Status:               record.Status,
		TotalRemainingMillis: remaining,
		ElapsedMillis:        record.ElapsedMillis,
		PlannedMillis:        record.PlannedMillis,
		StartedAt:            record.StartedAt,
		EndedAt:              record.EndedAt,
		ServerTime:           time.Now().UTC(),
	}
}

func isDone(run *activeRun) bool {
	select {
	case <-run.finished:
		return true
	default:
		return false
	}
}

func alertKind(eventType countdown.EventType) (alert.Kind, bool) {
	switch eventType {
	case countdown.EventPreNotification:
		return alert.KindPreNotification, true
	case countdown.EventSegmentFinished:
		return alert.KindSegmentFinished, true
	case countdown.EventFinished:
		return alert.KindFinished, true
	default:
		return "", false
	}
}

func runStatus(status countdown.Status) string {
	switch status {
	case countdown.StatusPaused:
		return model.RunStatusPaused
	case countdown.StatusFinished:
		return model.RunStatusCompleted
	case countdown.StatusCancelled:
		return model.RunStatusCancelled
	default:
		return model.RunStatusRunning
	}
}

func runNotFound(runID string) *apperrors.APIError {
	return apperrors.NotFound("run_not_found", fmt.Sprintf("run %q not found", runID))
}
