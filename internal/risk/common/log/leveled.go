package log

import "fmt"

// Leveled adapts a Logger to the key/value LeveledLogger shape expected by
// go-retryablehttp, so request retries show up in the structured log.
type Leveled struct {
	L Logger
}

// NewLeveled wraps l; a nil l falls back to the global logger at call time.
func NewLeveled(l Logger) *Leveled {
	return &Leveled{L: l}
}

func (a *Leveled) logger() Logger {
	if a.L == nil {
		return global
	}
	return a.L
}

func (a *Leveled) Error(msg string, keysAndValues ...interface{}) {
	a.logger().Error(kvFields(keysAndValues), msg)
}

func (a *Leveled) Info(msg string, keysAndValues ...interface{}) {
	a.logger().Info(kvFields(keysAndValues), msg)
}

func (a *Leveled) Debug(msg string, keysAndValues ...interface{}) {
	a.logger().Debug(kvFields(keysAndValues), msg)
}

func (a *Leveled) Warn(msg string, keysAndValues ...interface{}) {
	a.logger().Warn(kvFields(keysAndValues), msg)
}

// kvFields folds alternating key/value pairs into a field map.
// A dangling key is kept with a nil value.
func kvFields(kv []interface{}) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	fields := make(map[string]any, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 < len(kv) {
			fields[key] = kv[i+1]
		} else {
			fields[key] = nil
		}
	}
	return fields
}
