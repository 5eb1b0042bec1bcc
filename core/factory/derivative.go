// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Derivative is a registered named constructor of family plugin implementations.
// Derivatives form a tree: family base is root, and every derivative
// extends some parent.
type Derivative struct {
	family *Family
	parent *Derivative
	name   string
	seq    int

	// nil for abstract base.
	constructor    *constructor
	ownConstructor bool
	defaultConfig  defaultConfigContainer
	// Parent presets go first.
	presets []func(conf interface{}) error
}

type DerivativeOption func(o *derivativeOptions)

type derivativeOptions struct {
	newDefaultConfig interface{}
	presets          []func(conf interface{}) error
}

// WithDefaultConfig registers default config factory for constructor, that
// accepts config. Factory type should be func() <configType>.
// If no default config factory has been registered, constructor will
// receive zero config (zero struct or pointer to zero struct).
func WithDefaultConfig(newDefaultConfig interface{}) DerivativeOption {
	return func(o *derivativeOptions) {
		o.newDefaultConfig = newDefaultConfig
	}
}

// WithPreset adds config fill, that is applied to default config before any
// user provided fill. Presets are inherited by derivative children.
func WithPreset(fill func(conf interface{}) error) DerivativeOption {
	return func(o *derivativeOptions) {
		o.presets = append(o.presets, fill)
	}
}

func newDerivative(f *Family, parent *Derivative, name string, newImpl interface{}, opts []DerivativeOption) *Derivative {
	var o derivativeOptions
	for _, opt := range opts {
		opt(&o)
	}
	d := &Derivative{family: f, parent: parent, name: name}
	switch {
	case newImpl != nil:
		d.constructor = newConstructor(f.pluginType, newImpl)
		d.ownConstructor = true
	case parent != nil:
		d.constructor = parent.constructor
	}
	if d.constructor != nil {
		if newImpl == nil && o.newDefaultConfig == nil {
			d.defaultConfig = parent.defaultConfig
		} else {
			d.defaultConfig = newDefaultConfigContainer(d.constructor, o.newDefaultConfig)
		}
	} else {
		expect(o.newDefaultConfig == nil, "default config passed, but %q has no constructor", name)
	}
	if parent != nil {
		d.presets = append(d.presets, parent.presets...)
	}
	d.presets = append(d.presets, o.presets...)
	return d
}

// Extend registers new derivative of d. If newImpl is nil, d constructor is
// inherited: that allows to register same implementation under different
// names and config presets.
// Extend panics if constructor type expectations were failed.
func (d *Derivative) Extend(name string, newImpl interface{}, opts ...DerivativeOption) *Derivative {
	expect(d != nil && d.family != nil, "derivative %q has no family", d.Name())
	child := newDerivative(d.family, d, name, newImpl, opts)
	expect(child.constructor != nil || name != "", "anonymous derivative of %s should have constructor", d)
	d.family.register(child)
	return child
}

// Name returns derivative declared name. Anonymous derivatives have empty name.
func (d *Derivative) Name() string {
	if d == nil {
		return ""
	}
	return d.name
}

// Family returns family that owns derivative.
func (d *Derivative) Family() *Family { return d.family }

// Parent returns derivative that d extends, or nil for family base.
func (d *Derivative) Parent() *Derivative { return d.parent }

// Abstract returns true, if derivative can't be constructed.
func (d *Derivative) Abstract() bool { return d.constructor == nil }

// ImplType returns type of constructed values, or nil for abstract derivative.
func (d *Derivative) ImplType() reflect.Type {
	if d.constructor == nil {
		return nil
	}
	return d.constructor.ImplType()
}

// FactoryType returns unqualified name of family that owns derivative.
func (d *Derivative) FactoryType() (string, error) {
	if d == nil || d.family == nil {
		return "", errors.Wrapf(ErrNoFactoryBase, "derivative '%s'", d.Name())
	}
	return d.family.FactoryType(), nil
}

// IsA returns true, if d is ancestor, or extends it directly or indirectly.
func (d *Derivative) IsA(ancestor *Derivative) bool {
	for cur := d; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

func (d *Derivative) String() string {
	if d == nil {
		return "<nil>"
	}
	if d.name != "" {
		return d.name
	}
	if d.ImplType() != nil {
		return fmt.Sprintf("<anonymous %s>", d.ImplType())
	}
	return "<anonymous>"
}
