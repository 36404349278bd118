package configsvc

import (
	"fmt"
	"math"
	"strconv"
)

// Settings is a two-level settings document: section -> key -> scalar.
// Lookups never fail; a missing or mistyped value reports ok == false.
type Settings map[string]map[string]any

func LoadSettings(path string) (Settings, error) {
	return Load[Settings](path, nil)
}

func (s Settings) value(section, key string) (any, bool) {
	sec, ok := s[section]
	if !ok {
		return nil, false
	}
	v, ok := sec[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (s Settings) String(section, key string) (string, bool) {
	v, ok := s.value(section, key)
	if !ok {
		return "", false
	}
	switch v := v.(type) {
	case string:
		return v, true
	case bool, float64, int:
		return fmt.Sprint(v), true
	}
	return "", false
}

func (s Settings) Bool(section, key string) (bool, bool) {
	v, ok := s.value(section, key)
	if !ok {
		return false, false
	}
	switch v := v.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

func (s Settings) Float(section, key string) (float64, bool) {
	v, ok := s.value(section, key)
	if !ok {
		return 0, false
	}
	switch v := v.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func (s Settings) Int(section, key string) (int, bool) {
	f, ok := s.Float(section, key)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Set assigns a value, creating the section when needed.
func (s Settings) Set(section, key string, v any) {
	sec, ok := s[section]
	if !ok {
		sec = make(map[string]any)
		s[section] = sec
	}
	sec[key] = v
}
