// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NamespaceSeparator separates namespace and type name parts of declared
// derivative names: "test.LoadablePlugin".
const NamespaceSeparator = "."

// Family is a registry and loader of some plugin interface implementations.
// Family is safe for concurrent use.
type Family struct {
	pluginType  reflect.Type
	name        string
	factoryType string
	base        *Derivative

	// (namespace.)(Short)FactoryType, case insensitive.
	shortFormRegexp *regexp.Regexp
	// (namespace.)(Module)FactoryType, case sensitive.
	moduleNameRegexp *regexp.Regexp

	mu     sync.RWMutex
	dirs   []string
	loader Loader
	log    *zap.Logger
	// Named global logger, rebuilt only when zap globals are replaced.
	defaultLog    *zap.Logger
	defaultGlobal *zap.Logger
	derivatives   map[interface{}]*Derivative
	seq           int
	stats         loadStats
}

type Option func(f *Family)

// WithSearchDirs sets directory prefixes of candidate paths.
// No dirs means that candidates are tried without prefix.
func WithSearchDirs(dirs ...string) Option {
	return func(f *Family) {
		f.dirs = append([]string(nil), dirs...)
	}
}

// WithLoader sets loader used to load not registered derivatives.
func WithLoader(l Loader) Option {
	return func(f *Family) {
		f.loader = l
	}
}

// WithLogger sets diagnostic logger. Global zap logger is used by default,
// and nil log resets family to it.
func WithLogger(log *zap.Logger) Option {
	return func(f *Family) {
		if log == nil {
			f.log = nil
			return
		}
		f.log = log.With(zap.String("family", f.name))
	}
}

// WithBaseConstructor makes family base constructable: Create("") and
// Create(<family name>) will call newImpl.
func WithBaseConstructor(newImpl interface{}, opts ...DerivativeOption) Option {
	return func(f *Family) {
		f.base = newDerivative(f, nil, f.name, newImpl, opts)
	}
}

// NewFamily creates family of pluginType interface implementations.
// Family name is used as its declared name, and name part after last
// NamespaceSeparator is used as factory type. Empty name means pluginType name.
// NewFamily panics, if pluginType is not interface.
// Usually Declare should be used instead, to get process-wide family.
func NewFamily(pluginType reflect.Type, name string, opts ...Option) *Family {
	expect(pluginType != nil && pluginType.Kind() == reflect.Interface,
		"plugin type should be interface, but have: %s", pluginType)
	if name == "" {
		name = pluginType.String()
	}
	factoryType := trailingName(name)
	expect(factoryType != "", "invalid family name %q", name)
	quoted := regexp.QuoteMeta(factoryType)
	ns := regexp.QuoteMeta(NamespaceSeparator)
	f := &Family{
		pluginType:       pluginType,
		name:             name,
		factoryType:      factoryType,
		shortFormRegexp:  regexp.MustCompile(`(?i)(?:.*` + ns + `)?(\w+)(?:` + quoted + `)`),
		moduleNameRegexp: regexp.MustCompile(`(?:.*` + ns + `)?(\w+)(?:` + quoted + `)`),
		derivatives:      make(map[interface{}]*Derivative),
	}
	f.base = newDerivative(f, nil, name, nil, nil)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns family declared name.
func (f *Family) Name() string { return f.name }

// FactoryType returns unqualified family name, that is used as derivative
// name suffix: "Plugin" for "test.Plugin" family.
func (f *Family) FactoryType() string { return f.factoryType }

// PluginType returns interface type implemented by all derivatives.
func (f *Family) PluginType() reflect.Type { return f.pluginType }

// Base returns family root derivative.
func (f *Family) Base() *Derivative { return f.base }

func (f *Family) String() string { return f.name }

// SetSearchDirs replaces directory prefixes of candidate paths.
func (f *Family) SetSearchDirs(dirs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	WithSearchDirs(dirs...)(f)
}

// SearchDirs returns directory prefixes of candidate paths.
func (f *Family) SearchDirs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.dirs...)
}

// SetLoader replaces family loader.
func (f *Family) SetLoader(l Loader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loader = l
}

// SetLogger replaces family diagnostic logger.
func (f *Family) SetLogger(log *zap.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	WithLogger(log)(f)
}

// Register registers new direct derivative of family base.
// See package doc for constructor type expectations.
// Register designed to be called in package init func, so it panics if type
// expectations were failed.
func (f *Family) Register(name string, newImpl interface{}, opts ...DerivativeOption) *Derivative {
	return f.base.Extend(name, newImpl, opts...)
}

// Lookup returns registered derivative by any of its name keys.
// Unlike Resolve, Lookup never loads anything.
func (f *Family) Lookup(name string) (*Derivative, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.derivatives[strings.ToLower(name)]
	return d, ok
}

// Derivatives returns every registered derivative once, ordered by name.
func (f *Family) Derivatives() []*Derivative {
	f.mu.RLock()
	set := make(map[*Derivative]struct{}, len(f.derivatives))
	for _, d := range f.derivatives {
		set[d] = struct{}{}
	}
	f.mu.RUnlock()
	derivatives := make([]*Derivative, 0, len(set))
	for d := range set {
		derivatives = append(derivatives, d)
	}
	sort.Slice(derivatives, func(i, j int) bool {
		if derivatives[i].name != derivatives[j].name {
			return derivatives[i].name < derivatives[j].name
		}
		return derivatives[i].seq < derivatives[j].seq
	})
	return derivatives
}

// Resolve returns derivative for identifier, loading it if required.
// Identifier may be:
// derivative name string, in any form described in package doc;
// empty string or family name, that resolves to family base;
// *Derivative of this family;
// reflect.Type returned by some derivative own constructor.
func (f *Family) Resolve(id interface{}) (*Derivative, error) {
	switch id := id.(type) {
	case string:
		return f.resolveName(id)
	case *Derivative:
		if id != nil && (id == f.base || id.family == f && f.registered(id)) {
			return id, nil
		}
		return nil, &NotADescendantError{identifierString(id), f.name}
	case reflect.Type:
		if d := f.findByImplType(id); d != nil {
			return d, nil
		}
		return nil, &NotADescendantError{identifierString(id), f.name}
	default:
		return nil, errors.Errorf("identifier should be string, *Derivative or reflect.Type, but have %T", id)
	}
}

func (f *Family) resolveName(name string) (*Derivative, error) {
	if name == "" || name == f.name {
		return f.base, nil
	}
	key := strings.ToLower(name)
	if d, ok := f.Lookup(key); ok {
		return d, nil
	}
	path, err := f.Load(name)
	if err != nil {
		return nil, err
	}
	if d, ok := f.Lookup(key); ok {
		return d, nil
	}
	err = &RegistrationMismatchError{Path: path, FactoryType: f.factoryType, Key: key}
	f.logger().Error("Loaded unit registered no derivative under requested key", zap.Error(err))
	return nil, err
}

func (f *Family) registered(d *Derivative) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.derivatives[d] == d
}

func (f *Family) findByImplType(t reflect.Type) *Derivative {
	if t == nil {
		return nil
	}
	if f.base.ownConstructor && f.base.constructor.ImplType() == t {
		return f.base
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	var found *Derivative
	for key, d := range f.derivatives {
		if key != d || !d.ownConstructor || d.constructor.ImplType() != t {
			continue
		}
		if found == nil || found.seq < d.seq {
			found = d
		}
	}
	return found
}

// register indexes derivative by all its keys. Keys that are already used
// are silently overwritten. Calling register again for same derivative is no-op.
func (f *Family) register(d *Derivative) {
	nameKeys := f.nameKeys(d.name)
	log := f.logger()
	if d.name == "" {
		log.Debug("No name-based keys for anonymous derivative", zap.Stringer("derivative", d))
	}
	var overwritten []string
	f.mu.Lock()
	if d.seq == 0 {
		f.seq++
		d.seq = f.seq
	}
	f.derivatives[d] = d
	for _, key := range nameKeys {
		if prev, ok := f.derivatives[key]; ok && prev != d {
			overwritten = append(overwritten, key)
		}
		f.derivatives[key] = d
	}
	f.mu.Unlock()
	for _, key := range overwritten {
		log.Debug("Derivative key overwritten", zap.String("key", key), zap.Stringer("derivative", d))
	}
	log.Info("Derivative registered",
		zap.Stringer("derivative", d),
		zap.String("factory type", f.factoryType),
		zap.Strings("keys", nameKeys),
	)
}

// nameKeys returns name, lowercased name and lowercased short form of name.
func (f *Family) nameKeys(name string) []string {
	if name == "" {
		return nil
	}
	keys := []string{name}
	addKey := func(key string) {
		for _, k := range keys {
			if k == key {
				return
			}
		}
		keys = append(keys, key)
	}
	addKey(strings.ToLower(name))
	addKey(f.ShortName(name))
	return keys
}

// ShortName returns lowercased derivative name without namespace and
// factory type suffix: "dazzle" for "DazzlePlugin" in "Plugin" family.
// Name without suffix is only stripped of namespace: "blacksheep" for "BlackSheep".
func (f *Family) ShortName(name string) string {
	if m := f.shortFormRegexp.FindStringSubmatch(name); m != nil {
		return strings.ToLower(m[1])
	}
	return strings.ToLower(trailingName(name))
}

// Logger returns family diagnostic logger. Loaders should log through it,
// so that messages reach the sink passed to WithLogger.
func (f *Family) Logger() *zap.Logger { return f.logger() }

func (f *Family) logger() *zap.Logger {
	global := zap.L()
	f.mu.RLock()
	log, defaultLog, defaultGlobal := f.log, f.defaultLog, f.defaultGlobal
	f.mu.RUnlock()
	if log != nil {
		return log
	}
	if defaultLog != nil && defaultGlobal == global {
		return defaultLog
	}
	defaultLog = global.Named("factory").With(zap.String("family", f.name))
	f.mu.Lock()
	f.defaultLog, f.defaultGlobal = defaultLog, global
	f.mu.Unlock()
	return defaultLog
}

func trailingName(name string) string {
	if i := strings.LastIndex(name, NamespaceSeparator); i >= 0 {
		return name[i+len(NamespaceSeparator):]
	}
	return name
}

func identifierString(id interface{}) string {
	switch id := id.(type) {
	case string:
		return id
	case fmt.Stringer:
		if d, ok := id.(*Derivative); ok && d == nil {
			return "<nil>"
		}
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}
