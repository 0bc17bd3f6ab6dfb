/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes for configuration structures.
// It's decoded from a non-negative integer or a human-readable string ("250M", "10MB", "1Gi")
// and encoded as a human-readable string.
type ByteSize uint64

// UnmarshalText implements encoding.TextUnmarshaler, which is also used by mapstructure decode hooks.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := parseByteSizeFromString(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	s, err := jsonScalar(data)
	if err != nil {
		return fmt.Errorf("invalid byte size: %w", err)
	}
	return b.UnmarshalText([]byte(s))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	s, err := yamlScalar(value)
	if err != nil {
		return fmt.Errorf("invalid byte size: %w", err)
	}
	return b.UnmarshalText([]byte(s))
}

// String implements fmt.Stringer.
func (b ByteSize) String() string {
	return bytefmt.ByteSize(uint64(b))
}

// MarshalText implements encoding.TextMarshaler, JSON and YAML encoders use it as well.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// parseByteSizeFromString accepts plain numbers of bytes, bytefmt units and k8s binary suffixes (Ki, Mi, ...).
func parseByteSizeFromString(s string) (ByteSize, error) {
	v := strings.TrimSpace(s)
	if num, err := strconv.ParseInt(v, 10, 64); err == nil {
		if num < 0 {
			return 0, fmt.Errorf("byte size should not be negative, got %d", num)
		}
		return ByteSize(num), nil
	}
	// bytefmt treats "M" and "MiB" alike, so "Mi" just loses its trailing "i".
	if len(v) > 2 && v[len(v)-1] == 'i' && strings.ContainsRune("KMGTPE", rune(v[len(v)-2])) {
		v = v[:len(v)-1]
	}
	num, err := bytefmt.ToBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(num), nil
}

// TimeDuration is a time.Duration for configuration structures.
// It's decoded from a non-negative integer of nanoseconds or a string accepted by time.ParseDuration
// and encoded as time.Duration.String does.
type TimeDuration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, which is also used by mapstructure decode hooks.
func (d *TimeDuration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if num, err := strconv.ParseInt(s, 10, 64); err == nil {
		if num < 0 {
			return fmt.Errorf("time duration should not be negative, got %d", num)
		}
		*d = TimeDuration(num)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid time duration %q: %w", s, err)
	}
	*d = TimeDuration(dur)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *TimeDuration) UnmarshalJSON(data []byte) error {
	s, err := jsonScalar(data)
	if err != nil {
		return fmt.Errorf("invalid time duration: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	s, err := yamlScalar(value)
	if err != nil {
		return fmt.Errorf("invalid time duration: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// String implements fmt.Stringer.
func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler, JSON and YAML encoders use it as well.
func (d TimeDuration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// jsonScalar returns the text of a JSON string or number.
func jsonScalar(data []byte) (string, error) {
	var v interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("string or number expected, got %s", data)
	}
}

func yamlScalar(value *yaml.Node) (string, error) {
	if value.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("scalar expected at line %d", value.Line)
	}
	return value.Value, nil
}
