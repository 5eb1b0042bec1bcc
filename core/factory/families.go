// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"reflect"
	"sync"
)

var defaultFamilies = newFamilies()

type families struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Family
}

func newFamilies() *families {
	return &families{byType: make(map[reflect.Type]*Family)}
}

// Declare returns process-wide family of interface, that ptr points to.
// Family is created on first call, next calls return the same family.
// Options can be passed only on first call, use Family setters to
// reconfigure declared family.
// Example: factory.Declare((*Plugin)(nil), "Plugin", factory.WithSearchDirs("plugins"))
func Declare(ptr interface{}, name string, opts ...Option) *Family {
	return defaultFamilies.Declare(PtrType(ptr), name, opts...)
}

// Lookup returns process-wide family, declared for pluginType.
func Lookup(pluginType reflect.Type) (*Family, bool) {
	return defaultFamilies.Lookup(pluginType)
}

func (fs *families) Declare(pluginType reflect.Type, name string, opts ...Option) *Family {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if f, ok := fs.byType[pluginType]; ok {
		expect(name == "" || name == f.name, "%s family already declared with name %q, but %q passed", pluginType, f.name, name)
		expect(len(opts) == 0, "%s family already declared, options can't be passed", pluginType)
		return f
	}
	f := NewFamily(pluginType, name, opts...)
	fs.byType[pluginType] = f
	return f
}

func (fs *families) Lookup(pluginType reflect.Type) (*Family, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	f, ok := fs.byType[pluginType]
	return f, ok
}

// PtrType is helper to extract plugin types.
// Example: factory.PtrType((*Plugin)(nil)) instead of
// reflect.TypeOf((*Plugin)(nil)).Elem()
func PtrType(ptr interface{}) reflect.Type {
	t := reflect.TypeOf(ptr)
	if t == nil || t.Kind() != reflect.Ptr {
		panic("passed value is not pointer")
	}
	return t.Elem()
}
