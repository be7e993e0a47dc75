package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"multitimer/internal/countdown"
	"multitimer/internal/model"
	"multitimer/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run <timer>",
	Short: "Count down a timer's preset timers in order",
	Long:  "Count down a timer's preset timers in order. Press Ctrl-C to cancel.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	timer, apiErr := a.timers.Get(ctx, a.user.ID, args[0])
	if apiErr != nil {
		return apiErr
	}
	engine, err := countdown.New(timer.Name, timer.Presets)
	if err != nil {
		return fmt.Errorf("timer %q: %w", timer.Name, err)
	}
	runner := countdown.NewRunner(engine, countdown.Config{TickInterval: a.cfg.TickInterval})

	snapshot := drive(ctx, cmd.OutOrStdout(), timer, runner, a.cfg.TickInterval)
	if snapshot.Status == countdown.StatusCancelled {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("cancelled with "+service.FormatClock(snapshot.TotalRemaining.Milliseconds())+" left"))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), doneStyle.Render(timer.Name+" finished"))
	return nil
}

// segmentBar tracks the progress bar of one preset timer.
type segmentBar struct {
	bar  *mpb.Bar
	note atomic.Value
}

// drive runs the countdown until it finishes or ctx is cancelled, rendering
// one bar per preset timer. Alerts show next to the bar they belong to.
func drive(ctx context.Context, out io.Writer, timer *model.TimerWithPresets, runner *countdown.Runner, refresh time.Duration) countdown.Snapshot {
	progress := mpb.New(mpb.WithOutput(out), mpb.WithWidth(48), mpb.WithRefreshRate(refresh))
	bars := make(map[int]*segmentBar, len(timer.Presets))
	for _, preset := range timer.Presets {
		segment := &segmentBar{}
		segment.note.Store("")
		name := fmt.Sprintf("%d. %s", preset.TimerOrder, preset.PresetName)
		segment.bar = progress.New(preset.PresetTimeMillis,
			mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
				decor.OnComplete(
					decor.Any(func(s decor.Statistics) string {
						return service.FormatClock(s.Total - s.Current)
					}, decor.WC{W: 6}), "done",
				),
			),
			mpb.AppendDecorators(
				decor.Any(func(decor.Statistics) string {
					return segment.note.Load().(string)
				}),
			),
		)
		bars[preset.TimerOrder] = segment
	}

	events := runner.Subscribe(256)
	if err := runner.Start(ctx); err != nil {
		progress.Shutdown()
		return runner.Snapshot()
	}

	for event := range events {
		segment, ok := bars[event.TimerOrder]
		if !ok {
			continue
		}
		switch event.Type {
		case countdown.EventTick:
			segment.bar.SetCurrent(presetMillis(timer, event.TimerOrder) - event.SegmentRemaining.Milliseconds())
		case countdown.EventPreNotification:
			segment.note.Store(notifyStyle.Render(alertText(timer.NotificationType, "soon")))
		case countdown.EventSegmentFinished, countdown.EventFinished:
			segment.note.Store(doneStyle.Render(alertText(timer.NotificationType, "now")))
			segment.bar.SetCurrent(presetMillis(timer, event.TimerOrder))
		}
	}

	for _, segment := range bars {
		if !segment.bar.Completed() {
			segment.bar.Abort(false)
		}
	}
	progress.Wait()
	return runner.Snapshot()
}

func presetMillis(timer *model.TimerWithPresets, order int) int64 {
	for _, preset := range timer.Presets {
		if preset.TimerOrder == order {
			return preset.PresetTimeMillis
		}
	}
	return 0
}

func alertText(notificationType model.NotificationType, when string) string {
	if notificationType == model.NotificationAlarm {
		return "alarm " + when
	}
	return "buzz " + when
}
