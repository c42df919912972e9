package config

import (
	"fmt"
	"time"
)

// Duration 以 Go 时长字符串出现在 JSON 中的 time.Duration
//
//	{"initial_timeout": "500ms", "retry_delay": "2s"}
type Duration time.Duration

// UnmarshalText 实现 encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText 实现 encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Duration 返回底层 time.Duration
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// String 返回字符串表示
func (d Duration) String() string { return time.Duration(d).String() }
