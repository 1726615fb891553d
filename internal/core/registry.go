package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// Loader is the interface implemented by all dynamic field loaders.
type Loader interface {
	// Kind returns the source kind this loader resolves (e.g., "file", "attr").
	Kind() SourceKind

	// Load resolves a binding to its value.
	Load(ctx context.Context, b Binding) (*Value, error)
}

// Source describes the project tree a loader reads from.
type Source struct {
	Fs   afero.Fs
	Root string
	// PackageDirs are the directories searched for importable modules,
	// relative to Root.
	PackageDirs []string
}

// Factory creates a loader for a given project source.
type Factory func(src Source) Loader

var (
	factories = make(map[SourceKind]Factory)
	mu        sync.RWMutex
)

// Register adds a loader factory to the global registry.
func Register(kind SourceKind, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
}

// New creates a new loader for the given source kind.
func New(kind SourceKind, src Source) (Loader, error) {
	mu.RLock()
	factory, ok := factories[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown source kind: %s", kind)
	}

	if src.Fs == nil {
		src.Fs = afero.NewOsFs()
	}

	return factory(src), nil
}

// SupportedKinds returns all registered source kinds.
func SupportedKinds() []SourceKind {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]SourceKind, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Resolve loads every binding with the loader registered for its kind.
// Values are returned keyed by field name. Resolution stops at the first
// failing binding; callers collecting every problem use ResolveAll.
func Resolve(ctx context.Context, src Source, bindings []Binding) (map[string]*Value, error) {
	values := make(map[string]*Value, len(bindings))
	loaders := make(map[SourceKind]Loader)

	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		l, ok := loaders[b.Kind]
		if !ok {
			var err error
			l, err = New(b.Kind, src)
			if err != nil {
				return nil, &BindingError{Field: b.Field, Reason: err.Error()}
			}
			loaders[b.Kind] = l
		}

		v, err := l.Load(ctx, b)
		if err != nil {
			return nil, err
		}
		values[b.Field] = v
	}

	return values, nil
}

// ResolveAll is like Resolve but attempts every binding and returns all errors.
func ResolveAll(ctx context.Context, src Source, bindings []Binding) (map[string]*Value, []error) {
	values := make(map[string]*Value, len(bindings))
	var errs []error

	for _, b := range bindings {
		v, err := Resolve(ctx, src, []Binding{b})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[b.Field] = v[b.Field]
	}

	return values, errs
}
