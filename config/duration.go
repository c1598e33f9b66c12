package config

import (
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML. It accepts Go duration strings
// ("1s", "250ms") and bare numbers, read as seconds.
type Duration struct {
	time.Duration
}

// ParseDuration parses a Go duration string or a number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: duration must be a scalar", node.Line)
	}
	v, err := ParseDuration(node.Value)
	if err != nil {
		return errors.WithMessagef(err, "line %d", node.Line)
	}
	d.Duration = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}
