// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"reflect"
)

// defaultConfigContainer contains default config creation logic.
// Zero value is valid and means that no config is needed.
type defaultConfigContainer struct {
	// !IsValid() if constructor accepts no config.
	// Otherwise type is func() <configType>.
	newValue reflect.Value
}

func newDefaultConfigContainer(c *constructor, newDefaultConfig interface{}) defaultConfigContainer {
	configType := c.configType()
	if configType == nil {
		expect(newDefaultConfig == nil, "constructor %s accepts no config, but default config passed", c.Type())
		return defaultConfigContainer{}
	}
	newDefaultConfigType := reflect.FuncOf(nil, []reflect.Type{configType}, false)
	if newDefaultConfig == nil {
		value := reflect.MakeFunc(newDefaultConfigType,
			func(_ []reflect.Value) (results []reflect.Value) {
				return []reflect.Value{reflect.Zero(configType)}
			})
		return defaultConfigContainer{value}
	}
	value := reflect.ValueOf(newDefaultConfig)
	expect(value.Type() == newDefaultConfigType,
		"default config should be func that accepts nothing, and returns constructor argument, but have type %T", newDefaultConfig)
	return defaultConfigContainer{value}
}

// Get creates new config and calls fills on it in order.
// fills are called on empty struct pointer, if no config required.
func (e defaultConfigContainer) Get(fills ...func(conf interface{}) error) (maybeConf []reflect.Value, err error) {
	var fillAddr interface{}
	if e.configRequired() {
		maybeConf, fillAddr = e.new()
	} else {
		var emptyStruct struct{}
		fillAddr = &emptyStruct // No fields to fill.
	}
	for _, fill := range fills {
		if fill == nil {
			continue
		}
		err = fill(fillAddr)
		if err != nil {
			return nil, err
		}
	}
	return
}

func (e defaultConfigContainer) new() (maybeConf []reflect.Value, fillAddr interface{}) {
	conf := e.newValue.Call(nil)[0]
	switch conf.Kind() {
	case reflect.Struct:
		// Config can be filled only by pointer.
		if !conf.CanAddr() {
			newArg := reflect.New(conf.Type()).Elem()
			newArg.Set(conf)
			conf = newArg
		}
		fillAddr = conf.Addr().Interface()
	case reflect.Ptr:
		if conf.IsNil() {
			// Can't fill nil config. Init with zero.
			conf = reflect.New(conf.Type().Elem())
		}
		fillAddr = conf.Interface()
	default:
		panic("unexpected type " + conf.String())
	}
	maybeConf = []reflect.Value{conf}
	return
}

func (e defaultConfigContainer) configRequired() bool {
	return e.newValue.IsValid()
}
