package engine

import (
	"context"
	"fmt"
	"sort"
)

// Opener parses PDF bytes into a backend.
type Opener func(ctx context.Context, data []byte) (Backend, error)

// Backend names accepted by WithBackend.
const (
	BackendNative = "native"
	BackendFitz   = "fitz"
)

var openers = map[string]Opener{
	BackendNative: openNative,
	BackendFitz:   openFitz,
}

// Backends lists the available backend names.
func Backends() []string {
	names := make([]string, 0, len(openers))
	for n := range openers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidBackend reports whether name is a known backend.
func ValidBackend(name string) bool {
	_, ok := openers[name]
	return ok
}

type loadOptions struct {
	backend string
	open    Opener
}

func newLoadOptions(opts []Option) loadOptions {
	o := loadOptions{backend: BackendNative}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o loadOptions) opener() (Opener, error) {
	if o.open != nil {
		return o.open, nil
	}
	open, ok := openers[o.backend]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", o.backend)
	}
	return open, nil
}

// Option configures Load.
type Option func(*loadOptions)

// WithBackend selects a backend by name.
func WithBackend(name string) Option {
	return func(o *loadOptions) {
		if name != "" {
			o.backend = name
		}
	}
}

// WithOpener supplies the backend constructor directly.
func WithOpener(open Opener) Option {
	return func(o *loadOptions) {
		o.open = open
	}
}
