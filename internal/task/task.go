package task

import (
	"fmt"
	"math"
	"strconv"
)

// Task is the normalized form of one benchmark task instance.
type Task struct {
	// InstanceID uniquely identifies the task within its dataset
	InstanceID string

	// Repo is the repository reference (e.g. "django/django")
	Repo string

	// BaseCommit is the revision to check out before the agent runs
	BaseCommit string

	// Env contains optional per-task environment overrides
	Env map[string]string
}

// FromMap normalizes a loosely-typed task mapping into a Task.
//
// Dataset sources are not consistent about field types: instance ids may
// arrive as strings or numbers, and any field may be absent. All string
// coercion happens here so downstream code (labels, container names) never
// has to deal with a non-string identifier.
func FromMap(raw map[string]any) Task {
	t := Task{
		Repo:       coerceField(raw, "repo", ""),
		BaseCommit: coerceField(raw, "base_commit", ""),
	}

	if v, ok := raw["instance_id"]; ok && v != nil {
		t.InstanceID = coerceString(v)
	} else {
		// Some datasets identify tasks by project + bug id instead
		t.InstanceID = fmt.Sprintf("%s_%s",
			coerceField(raw, "project", "unknown"),
			coerceField(raw, "bug_id", "unknown"))
	}

	if env, ok := raw["env"].(map[string]any); ok {
		t.Env = make(map[string]string, len(env))
		for k, v := range env {
			t.Env[k] = coerceString(v)
		}
	}

	return t
}

// coerceField returns the named field coerced to a string, or fallback if the
// field is absent or nil.
func coerceField(raw map[string]any, key, fallback string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return fallback
	}
	return coerceString(v)
}

// coerceString converts a dynamically-typed value to its string form.
// Integral floats render without a decimal point since JSON decoding turns
// every number into a float64.
func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == math.Trunc(s) && !math.IsInf(s, 0) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
