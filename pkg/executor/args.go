package executor

import (
	"fmt"
	"time"
)

// Args arrive as a decoded JSON object, so numbers are float64 and anything
// typed by a Go caller is coerced the same way.

func requiredString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s argument is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	if s == "" {
		return "", fmt.Errorf("%s cannot be empty", key)
	}
	return s, nil
}

func optionalString(args map[string]interface{}, key, def string) (string, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// textArg requires the text key to be present and a string; empty is fine,
// typing nothing with clear=true is how a field gets cleared.
func textArg(args map[string]interface{}) (string, error) {
	v, ok := args["text"]
	if !ok {
		return "", fmt.Errorf("text argument is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("text must be a string")
	}
	return s, nil
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func requiredNumber(args map[string]interface{}, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s argument is required", key)
	}
	n, ok := asNumber(v)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return n, nil
}

func optionalInt(args map[string]interface{}, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	n, ok := asNumber(v)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return int(n), nil
}

func optionalBool(args map[string]interface{}, key string, def bool) (bool, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}

// timeoutArg reads the optional per-call timeout override in seconds.
func timeoutArg(args map[string]interface{}) (time.Duration, bool, error) {
	v, ok := args["timeout"]
	if !ok {
		return 0, false, nil
	}
	secs, ok := asNumber(v)
	if !ok {
		return 0, false, fmt.Errorf("timeout must be a number of seconds")
	}
	d := time.Duration(secs * float64(time.Second))
	if d < 100*time.Millisecond || d > 300*time.Second {
		return 0, false, fmt.Errorf("timeout must be between 0.1 and 300 seconds")
	}
	return d, true, nil
}
