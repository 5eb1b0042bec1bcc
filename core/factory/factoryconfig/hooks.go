// Copyright (c) 2017 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package factoryconfig integrates factory families with config decoding.
// Doing such integration in different package allows config and factory
// packages not to depend on each other, and set hooks when they are really needed.
package factoryconfig

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yandex/pluginfactory/core/config"
	"github.com/yandex/pluginfactory/core/factory"
)

func AddHooks() {
	config.AddTypeHook(Hook)
	config.AddTypeHook(FactoryHook)
}

// DerivativeNameKey is config key of derivative identifier.
const DerivativeNameKey = "type"

// Hook decodes config into plugin of declared family. Config is map with
// DerivativeNameKey and derivative config fields, or just derivative
// identifier string:
//
//	driver:
//	  type: mysql
//	  dsn: "localhost:3306"
func Hook(f reflect.Type, t reflect.Type, data interface{}) (p interface{}, err error) {
	family, ok := factory.Lookup(t)
	if !ok {
		return data, nil
	}
	name, fillConf, err := parseConf(family, data)
	if err != nil {
		return
	}
	return family.New(name, fillConf)
}

// FactoryHook decodes config into func() (<plugin>, error), that creates
// new family plugin from the same config on every call.
func FactoryHook(f reflect.Type, t reflect.Type, data interface{}) (p interface{}, err error) {
	family, ok := lookupFactory(t)
	if !ok {
		return data, nil
	}
	name, fillConf, err := parseConf(family, data)
	if err != nil {
		return
	}
	d, err := family.Resolve(name)
	if err != nil {
		return
	}
	// Config errors should be found on decode, not on first call.
	_, err = family.NewConfig(d, fillConf)
	if err != nil {
		return
	}
	return reflect.MakeFunc(t, func(_ []reflect.Value) []reflect.Value {
		plugin, err := family.New(d, fillConf)
		pluginVal := reflect.New(family.PluginType()).Elem()
		if plugin != nil {
			pluginVal.Set(reflect.ValueOf(plugin))
		}
		errVal := reflect.New(t.Out(1)).Elem()
		if err != nil {
			errVal.Set(reflect.ValueOf(err))
		}
		return []reflect.Value{pluginVal, errVal}
	}).Interface(), nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// lookupFactory returns family, if t is func() (<plugin>, error).
func lookupFactory(t reflect.Type) (*factory.Family, bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 0 || t.NumOut() != 2 || t.Out(1) != errorType {
		return nil, false
	}
	return factory.Lookup(t.Out(0))
}

func parseConf(family *factory.Family, data interface{}) (name string, fillConf func(conf interface{}) error, err error) {
	family.Logger().Debug("Parsing derivative config",
		zap.Reflect("conf", data),
	)
	if name, ok := data.(string); ok {
		return name, nil, nil
	}
	confData, err := toStringKeyMap(data)
	if err != nil {
		return
	}
	var names []string
	for key, val := range confData {
		if DerivativeNameKey == strings.ToLower(key) {
			strVal, ok := val.(string)
			if !ok {
				err = errors.Errorf("%s has non-string value %v", DerivativeNameKey, val)
				return
			}
			names = append(names, strVal)
			delete(confData, key)
		}
	}
	if len(names) == 0 {
		err = errors.Errorf("%s derivative %s expected", family, DerivativeNameKey)
		return
	}
	if len(names) > 1 {
		err = errors.Errorf("too many %s keys", DerivativeNameKey)
		return
	}
	name = names[0]
	fillConf = func(conf interface{}) error {
		err := config.DecodeAndValidate(confData, conf)
		if err != nil {
			err = fmt.Errorf("%s %s derivative\n"+
				"%s from %v %s",
				family, name, reflect.TypeOf(conf).Elem(), confData, err)
		}
		return err
	}
	return
}

func toStringKeyMap(data interface{}) (out map[string]interface{}, err error) {
	if data == nil {
		return map[string]interface{}{}, nil
	}
	if in, ok := data.(map[string]interface{}); ok {
		out = make(map[string]interface{}, len(in))
		for key, val := range in {
			out[key] = val
		}
		return
	}
	untypedKeyData, ok := data.(map[interface{}]interface{})
	if !ok {
		err = errors.Errorf("unexpected config type %T: should be map[string or interface{}]interface{}", data)
		return
	}
	out = make(map[string]interface{}, len(untypedKeyData))
	for key, val := range untypedKeyData {
		strKey, ok := key.(string)
		if !ok {
			err = errors.Errorf("unexpected key type %T: %v", key, key)
			return
		}
		out[strKey] = val
	}
	return
}
