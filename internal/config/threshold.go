package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Inclusive bounds for the inactivity period, in seconds.
const (
	MinThreshold = 1
	MaxThreshold = 86400
)

// ThresholdError is a fatal configuration error: the inactivity period could
// not be read, was not an integer, or was out of range.
type ThresholdError struct {
	Path string
	Err  error
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("unable to get inactivity period from %s, the inactivity period should be an integer ranging from 1 to 86,400: %v", e.Path, e.Err)
}

func (e *ThresholdError) Unwrap() error { return e.Err }

// LoadThreshold reads the inactivity period file at path.
func LoadThreshold(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &ThresholdError{Path: path, Err: err}
	}
	n, err := ParseThreshold(string(data))
	if err != nil {
		return 0, &ThresholdError{Path: path, Err: err}
	}
	return n, nil
}

// ParseThreshold parses and range-checks an inactivity period. Surrounding
// whitespace is ignored.
func ParseThreshold(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", strings.TrimSpace(s))
	}
	if n < MinThreshold || n > MaxThreshold {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, MinThreshold, MaxThreshold)
	}
	return n, nil
}
