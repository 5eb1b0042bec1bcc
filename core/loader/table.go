// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package loader

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/yandex/pluginfactory/core/factory"
)

// Unit is init func of some code unit. Usually it registers derivatives.
type Unit func() error

// Table loads units registered by path. Unit is run at most once: after
// successful run, next loads of the same path succeed without run.
// Failed unit is run again on next load.
// Units may load other table units. Concurrent loads of a running unit wait
// for it to finish, so a unit should not load itself.
// Table is safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	units   map[string]Unit
	loaded  map[string]bool
	running map[string]chan struct{}
}

var _ factory.Loader = (*Table)(nil)

func NewTable() *Table {
	return &Table{
		units:   make(map[string]Unit),
		loaded:  make(map[string]bool),
		running: make(map[string]chan struct{}),
	}
}

// Add registers unit at path. Add designed to be called in package init
// func, so it panics, if some unit has been already added at path.
func (t *Table) Add(path string, unit Unit) {
	if path == "" || unit == nil {
		panic("unit path and func should be non empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.units[path]; ok {
		panic(errors.Errorf("unit at '%s' has been already added", path))
	}
	t.units[path] = unit
}

// Has returns true, if some unit has been added at path.
func (t *Table) Has(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.units[path]
	return ok
}

// Loaded returns true, if unit at path has been successfully run.
func (t *Table) Loaded(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded[path]
}

// Load runs unit at path, if it has not been run yet.
func (t *Table) Load(path string) error {
	for {
		t.mu.Lock()
		unit, ok := t.units[path]
		if !ok {
			t.mu.Unlock()
			return errors.Wrapf(factory.ErrUnitNotFound, "no unit at '%s' in table", path)
		}
		if t.loaded[path] {
			t.mu.Unlock()
			return nil
		}
		done, running := t.running[path]
		if !running {
			done = make(chan struct{})
			t.running[path] = done
		}
		t.mu.Unlock()
		if !running {
			return t.run(path, unit, done)
		}
		// Failed unit is run again by one of waiters.
		<-done
	}
}

func (t *Table) run(path string, unit Unit, done chan struct{}) error {
	var succeeded bool
	defer func() {
		t.mu.Lock()
		t.loaded[path] = succeeded
		delete(t.running, path)
		t.mu.Unlock()
		close(done)
	}()
	err := unit()
	succeeded = err == nil
	return err
}
