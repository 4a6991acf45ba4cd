package memspace

import (
	"fmt"
	"sort"

	"github.com/leandrodaf/improv/internal/label"
	"github.com/leandrodaf/improv/sdk/contracts"
)

// DefaultType is the memory type used when none is configured.
const DefaultType = "ngram"

// indexes maps memory type keys to their constructors.
var indexes = map[string]func(label.Kind, contracts.Logger, ...Option) Index{
	"ngram": func(kind label.Kind, log contracts.Logger, opts ...Option) Index {
		return NewNGram(kind, log, opts...)
	},
}

// Types lists the registered memory types.
func Types() []string {
	out := make([]string, 0, len(indexes))
	for k := range indexes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the index registered under name.
func New(name string, kind label.Kind, log contracts.Logger, opts ...Option) (Index, error) {
	if name == "" {
		name = DefaultType
	}
	ctor, ok := indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return ctor(kind, log, opts...), nil
}
