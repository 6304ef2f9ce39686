package telemetry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxDepth     = 8
	maxStringLen = 4000
)

// Sanitize converts v into plain maps, slices and scalars that are safe to
// encode as JSON. Cycles become "[circular]" and anything nested deeper than
// maxDepth becomes "[max depth]".
func Sanitize(v any) any {
	s := sanitizer{onPath: map[uintptr]bool{}}
	return s.value(reflect.ValueOf(v), 0)
}

// SanitizeFields is Sanitize for a field map.
func SanitizeFields(f Fields) map[string]any {
	if f == nil {
		return nil
	}
	out, _ := Sanitize(map[string]any(f)).(map[string]any)
	return out
}

type sanitizer struct {
	onPath map[uintptr]bool
}

var timeType = reflect.TypeOf(time.Time{})

func (s sanitizer) value(v reflect.Value, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > maxDepth {
		return "[max depth]"
	}

	if v.CanInterface() {
		switch t := v.Interface().(type) {
		case error:
			if v.Kind() != reflect.Pointer || !v.IsNil() {
				return truncateString(t.Error())
			}
		case json.RawMessage:
			return truncateString(string(t))
		case []byte:
			return truncateString(string(t))
		case time.Duration:
			return t.String()
		}
	}
	if v.Type() == timeType {
		return v.Interface().(time.Time).Format(time.RFC3339Nano)
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.String:
		return truncateString(v.String())
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return s.value(v.Elem(), depth)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return s.enter(v.Pointer(), func() any { return s.value(v.Elem(), depth+1) })
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		return s.enter(v.Pointer(), func() any { return s.mapValue(v, depth) })
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		return s.enter(v.Pointer(), func() any { return s.listValue(v, depth) })
	case reflect.Array:
		return s.listValue(v, depth)
	case reflect.Struct:
		return s.structValue(v, depth)
	default:
		return "[" + v.Kind().String() + "]"
	}
}

// enter guards against revisiting a reference already on the current path.
func (s sanitizer) enter(ptr uintptr, fn func() any) any {
	if s.onPath[ptr] {
		return "[circular]"
	}
	s.onPath[ptr] = true
	defer delete(s.onPath, ptr)
	return fn()
}

func (s sanitizer) mapValue(v reflect.Value, depth int) any {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = s.value(iter.Value(), depth+1)
	}
	return out
}

func (s sanitizer) listValue(v reflect.Value, depth int) any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = s.value(v.Index(i), depth+1)
	}
	return out
}

func (s sanitizer) structValue(v reflect.Value, depth int) any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out[name] = s.value(v.Field(i), depth+1)
	}
	return out
}

func truncateString(s string) string {
	if len(s) <= maxStringLen {
		return s
	}
	cut := maxStringLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...[truncated]"
}

// sortedKeys is used where output order must be stable.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
