package steps

import (
	"maps"
	"strconv"
	"strings"
	"time"
)

// GetConfigString извлекает строковое значение из опций.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из опций.
func GetConfigInt(config map[string]any, key string) int {
	n, _ := toInt(config[key])
	return n
}

// GetConfigInts извлекает список чисел из опций. Нечисловые элементы
// пропускаются, ok=false сообщает об их наличии.
func GetConfigInts(config map[string]any, key string) (result []int, ok bool) {
	raw, isList := config[key].([]any)
	if !isList {
		return nil, config[key] == nil
	}
	ok = true
	for _, item := range raw {
		n, valid := toInt(item)
		if !valid {
			ok = false
			continue
		}
		result = append(result, n)
	}
	return result, ok
}

// toInt приводит число из YAML, JSON или шаблона к int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// GetConfigBool извлекает булево значение из опций.
// Строки "true"/"false" тоже принимаются: так приходят значения из шаблонов.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true", "yes", "1":
				return true
			case "false", "no", "0", "":
				return false
			}
		}
	}
	return defaultVal
}

// GetConfigMapString извлекает map[string]string из опций.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// GetConfigStrings извлекает список строк из опций.
// Одиночная строка превращается в список из одного элемента.
func GetConfigStrings(config map[string]any, key string) []string {
	v, ok := config[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case string:
		return []string{s}
	case []string:
		return s
	case []any:
		result := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return nil
}

// GetConfigTimeout возвращает таймаут из timeout_sec или timeout_ms.
func GetConfigTimeout(config map[string]any) time.Duration {
	if sec := GetConfigInt(config, "timeout_sec"); sec > 0 {
		return time.Duration(sec) * time.Second
	}
	if ms := GetConfigInt(config, "timeout_ms"); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return 0
}

// CloneOptions делает глубокую копию опций.
func CloneOptions(options map[string]any) map[string]any {
	if options == nil {
		return make(map[string]any)
	}
	return cloneValue(options).(map[string]any)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = cloneValue(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = cloneValue(item)
		}
		return result
	case map[string]string:
		return maps.Clone(val)
	case []string:
		result := make([]string, len(val))
		copy(result, val)
		return result
	default:
		return v
	}
}

// MergeOptions накладывает override на base.
// Вложенные map сливаются рекурсивно, остальные значения заменяются.
func MergeOptions(base, override map[string]any) map[string]any {
	result := CloneOptions(base)
	for k, v := range override {
		if src, ok := v.(map[string]any); ok {
			if dst, ok := result[k].(map[string]any); ok {
				result[k] = MergeOptions(dst, src)
				continue
			}
		}
		result[k] = cloneValue(v)
	}
	return result
}

// environMap превращает os.Environ() в map.
func environMap(environ []string) map[string]string {
	result := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		result[k] = v
	}
	return result
}
