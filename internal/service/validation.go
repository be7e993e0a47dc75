package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"multitimer/internal/config"
	apperrors "multitimer/internal/errors"
	"multitimer/internal/model"
)

// PresetInput is the user-editable part of a preset timer.
type PresetInput struct {
	PresetName             string
	PresetTimeMillis       int64
	NotificationTimeMillis int64
}

// nameField maps a human label to the request field it came from.
var nameField = map[string]string{
	"timer name":  "name",
	"preset name": "presetName",
}

func validateName(limits config.Limits, label, raw string) (string, *apperrors.APIError) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperrors.Invalid("empty_name", nameField[label], label+" is required")
	}
	if limits.MaxNameLength > 0 && utf8.RuneCountInString(name) > limits.MaxNameLength {
		return "", apperrors.Invalid(
			"name_too_long",
			nameField[label],
			fmt.Sprintf("%s must be at most %d characters", label, limits.MaxNameLength),
		)
	}
	return name, nil
}

func validatePreset(limits config.Limits, input PresetInput) (PresetInput, *apperrors.APIError) {
	name, apiErr := validateName(limits, "preset name", input.PresetName)
	if apiErr != nil {
		return input, apiErr
	}
	input.PresetName = name

	if input.PresetTimeMillis <= 0 {
		return input, apperrors.Invalid("invalid_preset_time", "presetTimeMillis", "preset time must be greater than zero")
	}
	if input.NotificationTimeMillis < 0 {
		return input, apperrors.Invalid("invalid_notification_time", "notificationTimeMillis", "notification time must not be negative")
	}
	if input.NotificationTimeMillis >= input.PresetTimeMillis {
		return input, apperrors.Invalid("invalid_notification_time", "notificationTimeMillis", "notification time must be shorter than preset time")
	}
	return input, nil
}

func validateNotificationType(raw string) (model.NotificationType, *apperrors.APIError) {
	value := model.NotificationType(strings.ToLower(strings.TrimSpace(raw)))
	if !model.IsValidNotificationType(value) {
		return "", apperrors.Invalid("invalid_notification_type", "notificationType", "notification type must be one of vibration, alarm")
	}
	return value, nil
}

func duplicateName(name string) *apperrors.APIError {
	return apperrors.Conflict("duplicate_name", fmt.Sprintf("timer %q already exists", name), nil)
}
