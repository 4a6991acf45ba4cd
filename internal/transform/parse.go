package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leandrodaf/improv/sdk/contracts"
)

// Default is the transform set used when none is configured.
func Default() []Transform {
	return []Transform{Identity{}}
}

// Parse resolves a list of transform keywords. Accepted forms:
// "identity", "transpose:<n>" and "transpose:<lo>..<hi>" (one transform per semitone).
// Duplicates are dropped.
func Parse(specs []string) ([]Transform, error) {
	var out []Transform
	seen := make(map[uint64]bool)
	add := func(t Transform) {
		if !seen[t.Hash()] {
			seen[t.Hash()] = true
			out = append(out, t)
		}
	}

	for _, spec := range specs {
		spec = strings.TrimSpace(strings.ToLower(spec))
		name, arg, _ := strings.Cut(spec, ":")
		switch name {
		case "identity", "none":
			add(Identity{})
		case "transpose":
			lo, hi, err := parseRange(arg)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrTransform, spec, err)
			}
			for s := lo; s <= hi; s++ {
				if s == 0 {
					add(Identity{})
				} else {
					add(Transpose{Semitones: s})
				}
			}
		default:
			return nil, fmt.Errorf("%w: unknown transform %q", ErrTransform, spec)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no transforms given", ErrTransform)
	}
	return out, nil
}

// ParseOrDefault resolves specs, falling back to Default with a warning.
func ParseOrDefault(specs []string, log contracts.Logger) []Transform {
	ts, err := Parse(specs)
	if err != nil {
		log.Warn("Invalid transforms, using identity", log.Field().Error("error", err))
		return Default()
	}
	return ts
}

func parseRange(arg string) (int, int, error) {
	loStr, hiStr, isRange := strings.Cut(arg, "..")
	lo, err := strconv.Atoi(strings.TrimSpace(loStr))
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(hiStr))
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("range %d..%d is empty", lo, hi)
	}
	return lo, hi, nil
}
