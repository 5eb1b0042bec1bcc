// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package config decodes untyped config data (usually parsed from
// yaml/json/toml) into derivative config structs, and validates them.
package config

import (
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const TagName = "config"

// Decode decodes conf to result. Doesn't zero fields, so defaults set in
// result are kept, if conf has no value for them.
func Decode(conf interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(newDecoderConfig(result))
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(decoder.Decode(conf))
}

func DecodeAndValidate(conf interface{}, result interface{}) error {
	err := Decode(conf, result)
	if err != nil {
		return err
	}
	return Validate(result)
}

func newDecoderConfig(result interface{}) *mapstructure.DecoderConfig {
	return &mapstructure.DecoderConfig{
		DecodeHook:       compiledHook(),
		ErrorUnused:      true,
		ZeroFields:       false,
		WeaklyTypedInput: false,
		TagName:          TagName,
		Result:           result,
	}
}

type TypeHook mapstructure.DecodeHookFuncType
type KindHook mapstructure.DecodeHookFuncKind

// AddTypeHook appends hook to decode hooks.
// Returning value allow do `var _ = AddTypeHook(xxx)`
func AddTypeHook(hook TypeHook) (_ struct{}) {
	addHook(mapstructure.DecodeHookFuncType(hook))
	return
}

func AddKindHook(hook KindHook) (_ struct{}) {
	addHook(mapstructure.DecodeHookFuncKind(hook))
	return
}

func DefaultHooks() []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		VariableInjectHook,
		TextUnmarshallerHook,
		mapstructure.StringToTimeDurationHookFunc(),
		StringToURLHook,
		StringToIPHook,
		StringToDataSizeHook,
	}
}

func GetHooks() []mapstructure.DecodeHookFunc {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	return append([]mapstructure.DecodeHookFunc(nil), hooks...)
}

func SetHooks(h []mapstructure.DecodeHookFunc) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks = h
	compiled = nil
}

var (
	hooksMu  sync.Mutex
	hooks    = DefaultHooks()
	compiled mapstructure.DecodeHookFunc
)

func addHook(hook mapstructure.DecodeHookFunc) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks = append(hooks, hook)
	compiled = nil
}

func compiledHook() mapstructure.DecodeHookFunc {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if compiled == nil {
		compiled = mapstructure.ComposeDecodeHookFunc(hooks...)
	}
	return compiled
}
