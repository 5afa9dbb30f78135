package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const commaSeparator = ","

var ErrInvalid = errors.New("invalid environment variable")

// GetWithDefault returns the value of the environment variable key. If it is
// unset or empty the fallback is returned.
func GetWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetIntWithDefault returns the value of key as an int, or fallback when it
// is unset or empty. A value that is not an integer is an error.
func GetIntWithDefault(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback, fmt.Errorf("%w %s=%q: not an integer", ErrInvalid, key, value)
	}
	return i, nil
}

// GetTruthyWithDefault accepts anything strconv.ParseBool does
// (t, true, True, 1, ...).
func GetTruthyWithDefault(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback, fmt.Errorf("%w %s=%q: not a truthy value", ErrInvalid, key, value)
	}
	return b, nil
}

// GetListWithDefault splits a csv value, dropping blank elements.
func GetListWithDefault(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var values []string
	for _, v := range strings.Split(value, commaSeparator) {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
