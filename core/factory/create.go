// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/facebookgo/stack"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yandex/pluginfactory/lib/errutil"
)

// Create resolves identifier and creates new derivative instance, passing
// args to derivative constructor. Derivative that accepts config is passed
// default config, when no args are passed.
// Construction failures, including constructor panics, are returned as
// *ConstructionError.
func (f *Family) Create(id interface{}, args ...interface{}) (interface{}, error) {
	d, err := f.Resolve(id)
	if err != nil {
		return nil, err
	}
	return d.construct(identifierString(id), func() (interface{}, error) {
		if len(args) == 0 && d.defaultConfig.configRequired() {
			conf, err := d.defaultConfig.Get(d.presets...)
			if err != nil {
				return nil, err
			}
			return d.constructor.call(conf)
		}
		return d.constructor.Call(args)
	})
}

// New resolves identifier and creates new derivative instance, passing
// config to derivative constructor. Config is created by registered default
// config factory, then derivative presets and fillConf are called on it.
// fillConf is called on empty struct pointer, if derivative accepts no config.
// Returns error if derivative constructor requires arguments other than config.
func (f *Family) New(id interface{}, fillConfOptional ...func(conf interface{}) error) (interface{}, error) {
	expect(len(fillConfOptional) <= 1, "only fill config parameter could be passed")
	d, err := f.Resolve(id)
	if err != nil {
		return nil, err
	}
	fills := append([]func(conf interface{}) error(nil), d.presets...)
	fills = append(fills, fillConfOptional...)
	return d.construct(identifierString(id), func() (interface{}, error) {
		if !d.defaultConfig.configRequired() && d.constructor.Type().NumIn() > 0 {
			return nil, errors.Errorf("constructor %s requires arguments, so can't be created from config", d.constructor.Type())
		}
		conf, err := d.defaultConfig.Get(fills...)
		if err != nil {
			return nil, err
		}
		return d.constructor.call(conf)
	})
}

func (d *Derivative) construct(id string, build func() (interface{}, error)) (plugin interface{}, err error) {
	if d.constructor == nil {
		return nil, d.constructionError(id, ErrAbstract, originStack(nil))
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		panicStack := filterStack(errutil.PanicStack())
		panicErr, ok := r.(error)
		if !ok {
			panicErr = fmt.Errorf("%v", r)
		}
		plugin, err = nil, d.constructionError(id, panicErr, panicStack)
	}()
	plugin, err = build()
	if err != nil {
		return nil, d.constructionError(id, err, originStack(err))
	}
	return plugin, nil
}

func (d *Derivative) constructionError(id string, err error, s stack.Stack) error {
	constructionErr := &ConstructionError{Identifier: id, Err: err, stack: s}
	d.family.logger().Debug("Derivative construction failed",
		zap.Stringer("derivative", d), zap.Error(constructionErr))
	return constructionErr
}

// originStack returns err stack, or current stack, if err has no stack.
// Frames of this package are dropped in both cases.
func originStack(err error) stack.Stack {
	if s := filterStack(errutil.Stack(err)); len(s) > 0 {
		return s
	}
	return filterStack(stack.Callers(1))
}

var packageDir = func() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}()

func filterStack(s stack.Stack) stack.Stack {
	return errutil.DropFrames(s, errutil.InDir(packageDir))
}

// NewConfig resolves identifier and returns config, that New would pass to
// derivative constructor, without constructor call. Returns nil config,
// if derivative accepts no config.
func (f *Family) NewConfig(id interface{}, fillConfOptional ...func(conf interface{}) error) (interface{}, error) {
	expect(len(fillConfOptional) <= 1, "only fill config parameter could be passed")
	d, err := f.Resolve(id)
	if err != nil {
		return nil, err
	}
	if d.constructor == nil {
		return nil, errors.Wrapf(ErrAbstract, "derivative '%s'", d)
	}
	fills := append([]func(conf interface{}) error(nil), d.presets...)
	fills = append(fills, fillConfOptional...)
	maybeConf, err := d.defaultConfig.Get(fills...)
	if err != nil || len(maybeConf) == 0 {
		return nil, err
	}
	return maybeConf[0].Interface(), nil
}
