package repository

import "time"

// storedTimeLayout has a fixed-width fraction so that stored timestamps sort
// lexicographically in time order.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}
