package node

import (
	"math"
	"time"
)

// FlagSet carries the values of the flags from the CLI to the daemon. It is
// encoded in JSON, so numbers come back as float64.
//
// - implements cli.Flags
type FlagSet map[string]interface{}

// String implements cli.Flags.
func (fset FlagSet) String(name string) string {
	v, _ := fset[name].(string)
	return v
}

// Duration implements cli.Flags. Durations travel as nanoseconds.
func (fset FlagSet) Duration(name string) time.Duration {
	switch v := fset[name].(type) {
	case float64:
		return time.Duration(v)
	case time.Duration:
		return v
	default:
		return 0
	}
}

// Path implements cli.Flags.
func (fset FlagSet) Path(name string) string {
	return fset.String(name)
}

// Int implements cli.Flags. A number with a fractional part is ignored.
func (fset FlagSet) Int(name string) int {
	switch v := fset[name].(type) {
	case int:
		return v
	case float64:
		if v != math.Trunc(v) {
			return 0
		}
		return int(v)
	default:
		return 0
	}
}

// Bool implements cli.Flags.
func (fset FlagSet) Bool(name string) bool {
	v, _ := fset[name].(bool)
	return v
}
