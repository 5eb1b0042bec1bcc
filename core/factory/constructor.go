// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// constructor wraps registered func([args...]) (<pluginImpl>[, error]).
type constructor struct {
	pluginType reflect.Type
	newImpl    reflect.Value
}

func newConstructor(pluginType reflect.Type, newImpl interface{}) *constructor {
	newImplType := reflect.TypeOf(newImpl)
	expect(newImplType != nil && newImplType.Kind() == reflect.Func, "constructor should be func, but have: %T", newImpl)
	expect(1 <= newImplType.NumOut() && newImplType.NumOut() <= 2,
		"constructor should return plugin implementation, and optionally error")
	implType := newImplType.Out(0)
	expect(implType.Implements(pluginType), "constructor result %s should implement %s", implType, pluginType)
	if newImplType.NumOut() == 2 {
		expect(newImplType.Out(1) == errorType, "constructor should have no second return value, or it should be error")
	}
	return &constructor{pluginType, reflect.ValueOf(newImpl)}
}

// ImplType is type of constructed values.
func (c *constructor) ImplType() reflect.Type {
	return c.newImpl.Type().Out(0)
}

func (c *constructor) Type() reflect.Type {
	return c.newImpl.Type()
}

// configType returns type of single struct or struct pointer argument,
// or nil, if constructor doesn't look like func(<config>) ...
func (c *constructor) configType() reflect.Type {
	t := c.newImpl.Type()
	if t.NumIn() != 1 || t.IsVariadic() {
		return nil
	}
	in := t.In(0)
	if in.Kind() == reflect.Struct || in.Kind() == reflect.Ptr && in.Elem().Kind() == reflect.Struct {
		return in
	}
	return nil
}

// Call converts args to constructor params and calls it.
// Panic in constructor is not recovered here.
func (c *constructor) Call(args []interface{}) (interface{}, error) {
	in, err := c.convertArgs(args)
	if err != nil {
		return nil, err
	}
	return c.call(in)
}

func (c *constructor) call(in []reflect.Value) (plugin interface{}, err error) {
	out := c.newImpl.Call(in)
	if len(out) > 1 {
		err, _ = out[1].Interface().(error)
	}
	if err != nil {
		return nil, err
	}
	return out[0].Interface(), nil
}

func (c *constructor) convertArgs(args []interface{}) ([]reflect.Value, error) {
	t := c.newImpl.Type()
	numIn := t.NumIn()
	if t.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, errors.Errorf("wrong number of arguments: %v for at least %v", len(args), numIn-1)
		}
	} else if len(args) != numIn {
		return nil, errors.Errorf("wrong number of arguments: %v for %v", len(args), numIn)
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var paramType reflect.Type
		if t.IsVariadic() && i >= numIn-1 {
			paramType = t.In(numIn - 1).Elem()
		} else {
			paramType = t.In(i)
		}
		val, err := convertArg(arg, paramType)
		if err != nil {
			return nil, errors.WithMessage(err, fmt.Sprintf("argument %v", i))
		}
		in[i] = val
	}
	return in, nil
}

func convertArg(arg interface{}, paramType reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch paramType.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(paramType), nil
		}
		return reflect.Value{}, errors.Errorf("nil can't be passed as %s", paramType)
	}
	val := reflect.ValueOf(arg)
	if val.Type().AssignableTo(paramType) {
		return val, nil
	}
	if val.Type().ConvertibleTo(paramType) && val.Kind() == paramType.Kind() {
		return val.Convert(paramType), nil
	}
	return reflect.Value{}, errors.Errorf("%T is not assignable to %s", arg, paramType)
}

func expect(b bool, msg string, args ...interface{}) {
	if !b {
		panic(fmt.Sprintf("expectation failed: "+msg, args...))
	}
}
