package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"multitimer/internal/model"
	"multitimer/internal/service"
)

var (
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	notifyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List timers",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <timer>",
	Short: "Show a timer and its preset timers",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	timers, apiErr := a.timers.List(cmd.Context(), a.user.ID)
	if apiErr != nil {
		return apiErr
	}
	printTimers(cmd.OutOrStdout(), timers)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	timer, apiErr := a.timers.Get(cmd.Context(), a.user.ID, args[0])
	if apiErr != nil {
		return apiErr
	}
	printTimer(cmd.OutOrStdout(), timer)
	return nil
}

func printTimers(w io.Writer, timers []model.Timer) {
	for _, timer := range timers {
		if timer.ListType == model.ListTypeInitial {
			fmt.Fprintln(w, mutedStyle.Render("no timers yet"))
			return
		}
		fmt.Fprintf(w, "%s  %s\n", nameStyle.Render(timer.Name), service.FormatClock(timer.TotalMillis))
		if timer.ListType == model.ListTypeDetail {
			fmt.Fprintln(w, mutedStyle.Render(indent(timer.Detail)))
		}
	}
}

func printTimer(w io.Writer, timer *model.TimerWithPresets) {
	fmt.Fprintf(w, "%s  %s  %s\n",
		nameStyle.Render(timer.Name),
		service.FormatClock(timer.TotalMillis),
		mutedStyle.Render(string(timer.NotificationType)),
	)
	fmt.Fprintln(w, indent(timer.Detail))
}

func indent(text string) string {
	return "  " + strings.ReplaceAll(text, "\n", "\n  ")
}
