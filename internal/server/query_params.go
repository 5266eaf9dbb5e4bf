package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/fundtrack/internal/fund/domain"
)

const (
	dateOnlyLayout = "2006-01-02"
	monthLayout    = "2006-01"
)

var errInvalidMonth = errors.New("invalid_timestamp")

// parseOptionalMonth accepts RFC 3339, a calendar date or a bare year-month
// and returns the first instant of that UTC month.
func parseOptionalMonth(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, dateOnlyLayout, monthLayout} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			month := domain.NormalizeMonth(parsed)
			return &month, nil
		}
	}
	return nil, errInvalidMonth
}

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 0 {
		return 0, errors.New("invalid_integer")
	}
	return parsed, nil
}
