package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArgs is returned when the command line cannot be parsed.
var ErrInvalidArgs = errors.New("config: invalid arguments")

// Kind identifies the type held by a Value.
type Kind int

// Value kinds.
const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// Value is a command-line or environment value. The kind is decided once, at
// parse time, from the raw text.
type Value struct {
	kind Kind
	raw  string
	i    int64
	f    float64
	b    bool
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Raw returns the text the value was parsed from.
func (v Value) Raw() string { return v.raw }

// GuessValue classifies raw text: empty, "true" and "false" are booleans,
// then integers (with 0x/0 prefixes), then floats, otherwise a string.
func GuessValue(raw string) Value {
	switch raw {
	case "", "true":
		return Value{kind: KindBool, raw: raw, b: true}
	case "false":
		return Value{kind: KindBool, raw: raw, b: false}
	}
	if i, err := strconv.ParseInt(raw, 0, 64); err == nil {
		return Value{kind: KindInt, raw: raw, i: i}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Value{kind: KindFloat, raw: raw, f: f}
	}
	return Value{kind: KindString, raw: raw}
}

// Args holds parsed command-line and environment values keyed by long
// option name ("mqtt-host").
type Args struct {
	values   map[string]Value
	freeform []string
}

// ParseArgs parses argv (without the program name) and environ.
//
// Supported forms:
//
//	--key=value    --key value    --flag          (true)
//	--no-flag      --disable-flag (false)         -abc (a, b, c true)
//	--             (everything after is freeform)
//
// Environment entries PREFIX_MQTT_HOST=x map to key "mqtt-host". Command-line
// values take precedence over the environment.
func ParseArgs(argv, environ []string, envPrefix string) (*Args, error) {
	a := &Args{values: make(map[string]Value)}

	for _, kv := range environ {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || envPrefix == "" || !strings.HasPrefix(name, envPrefix) {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, envPrefix)), "_", "-")
		if key != "" {
			a.values[key] = GuessValue(val)
		}
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			a.freeform = append(a.freeform, argv[i+1:]...)
			return a, nil

		case strings.HasPrefix(arg, "--"):
			key, val, hasVal := strings.Cut(arg[2:], "=")
			if key == "" || strings.HasPrefix(key, "-") {
				return nil, fmt.Errorf("%w: unexpected dash in %q", ErrInvalidArgs, arg)
			}
			if !hasVal && i+1 < len(argv) && !strings.HasPrefix(argv[i+1], "-") {
				i++
				val = argv[i]
			}
			a.set(key, GuessValue(val))

		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			for _, r := range arg[1:] {
				if r == '-' || r == '=' {
					return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidArgs, r, arg)
				}
				a.values[string(r)] = Value{kind: KindBool, b: true}
			}

		default:
			a.freeform = append(a.freeform, arg)
		}
	}

	return a, nil
}

// set stores a value, folding --no-x and --disable-x booleans into x.
func (a *Args) set(key string, v Value) {
	if v.kind == KindBool {
		for _, prefix := range []string{"no-", "disable-"} {
			if name, ok := strings.CutPrefix(key, prefix); ok && name != "" {
				v.b = !v.b
				v.raw = strconv.FormatBool(v.b)
				a.values[name] = v
				return
			}
		}
	}
	a.values[key] = v
}

// Has reports whether key was given.
func (a *Args) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Value returns the raw Value for key.
func (a *Args) Value(key string) (Value, bool) {
	v, ok := a.values[key]
	return v, ok
}

// String returns key as text. Values of any kind are returned as they were
// written, so "--mqtt-password 1234" still yields "1234".
func (a *Args) String(key, fallback string) string {
	v, ok := a.values[key]
	if !ok {
		return fallback
	}
	if v.kind == KindBool && v.raw == "" {
		return strconv.FormatBool(v.b)
	}
	return v.raw
}

// Int returns key as an integer, or fallback if absent or not an integer.
func (a *Args) Int(key string, fallback int64) int64 {
	v, ok := a.values[key]
	if !ok || v.kind != KindInt {
		return fallback
	}
	return v.i
}

// Float returns key as a float. Integers widen.
func (a *Args) Float(key string, fallback float64) float64 {
	v, ok := a.values[key]
	if !ok {
		return fallback
	}
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	default:
		return fallback
	}
}

// Bool returns key as a boolean, or fallback if absent or not a boolean.
func (a *Args) Bool(key string, fallback bool) bool {
	v, ok := a.values[key]
	if !ok || v.kind != KindBool {
		return fallback
	}
	return v.b
}

// Freeform returns positional arguments.
func (a *Args) Freeform() []string {
	return a.freeform
}
