package plugin

import (
	"fmt"

	"github.com/marcus/folio/internal/engine"
	"github.com/marcus/folio/internal/store"
)

// Package bundles everything the registry needs to host one plugin type.
type Package[P Plugin, C any, S any] struct {
	Manifest     Manifest
	Create       func(reg *Registry, eng engine.Engine, cfg C) P
	Reducer      store.Reducer[S]
	InitialState S
}

// Register adds pkg to reg with the given config. The plugin is created on
// the next Initialize call.
func Register[P Plugin, C any, S any](reg *Registry, pkg Package[P, C, S], cfg C) error {
	if err := pkg.Manifest.Validate(); err != nil {
		return err
	}
	if pkg.Create == nil {
		return fmt.Errorf("%w: %s has no constructor", ErrInvalidManifest, pkg.Manifest.ID)
	}

	build := func(r *Registry) Plugin {
		st := store.New(pkg.InitialState, pkg.Reducer,
			store.WithLogger[S](pkg.Manifest.ID, r.logger))
		p := pkg.Create(r, r.engine, cfg)
		if binder, ok := any(p).(StateBinder[S]); ok {
			binder.BindStore(st)
		}
		return p
	}

	return reg.add(&registration{manifest: pkg.Manifest, build: build})
}
