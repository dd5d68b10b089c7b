// Package environment reads turbobot settings from environment variables.
//
// The *Or helpers return a default instead of failing when a variable is
// unset or unparsable. Duration reports a malformed value so the caller can
// refuse to start.
package environment

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StringOr returns the value of name, or defaultValue if it is unset or empty.
func StringOr(name, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return defaultValue
}

// BoolOr parses name with strconv.ParseBool.
func BoolOr(name string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// Duration parses name as a time.Duration ("60s", "2m"). A bare integer is
// read as seconds, matching how the timeout was written in older deployments.
// An unset variable yields defaultValue; a malformed one yields defaultValue
// and an error naming the variable.
func Duration(name string, defaultValue time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return defaultValue, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: invalid duration %q", name, v)
	}
	return d, nil
}

// StringSliceOr splits name on commas, trimming blanks and dropping empty
// elements.
func StringSliceOr(name string, defaultValue []string) []string {
	v := os.Getenv(name)
	if strings.TrimSpace(v) == "" {
		return defaultValue
	}
	var result []string
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
