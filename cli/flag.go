package cli

import "time"

// EnvPrefix starts the name of the environment variables that provide the
// value of a flag missing from the command line.
const EnvPrefix = "CMAN_"

// StringFlag is a text flag such as a contract id, a file or an address.
//
// - implements cli.Flag
type StringFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    string

	// Env is the environment variable read when the flag is not set.
	Env string
}

// Flag implements cli.Flag.
func (flag StringFlag) Flag() {}

// DurationFlag is a flag like "30s" or "250ms", used for delays and
// deadlines.
//
// - implements cli.Flag
type DurationFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    time.Duration
	Env      string
}

// Flag implements cli.Flag.
func (flag DurationFlag) Flag() {}

// IntFlag is a flag holding a whole number, for instance an amount of hbar.
//
// - implements cli.Flag
type IntFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    int
	Env      string
}

// Flag implements cli.Flag.
func (flag IntFlag) Flag() {}

// BoolFlag is a switch. It cannot be required since its absence is a value.
//
// - implements cli.Flag
type BoolFlag struct {
	Name  string
	Usage string
	Value bool
	Env   string
}

// Flag implements cli.Flag.
func (flag BoolFlag) Flag() {}

// EnvName returns the environment variable of a flag, like CMAN_GATEWAY_ADDR
// for the name "gateway-addr".
func EnvName(name string) string {
	buf := []byte(EnvPrefix)

	for i := 0; i < len(name); i++ {
		c := name[i]

		switch {
		case c >= 'a' && c <= 'z':
			c -= 'a' - 'A'
		case c == '-' || c == '.':
			c = '_'
		}

		buf = append(buf, c)
	}

	return string(buf)
}
