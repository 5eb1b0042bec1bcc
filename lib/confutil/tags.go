// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package confutil resolves ${tag:variable} references in config strings.
package confutil

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrCantCast         = errors.New("can't cast variable")
	ErrUnknownTag       = errors.New("unknown tag type")
	ErrVariableNotFound = errors.New("variable not found")
)

// TagResolver returns value of variable.
type TagResolver func(variable string) (string, error)

var (
	resolversMu sync.RWMutex
	resolvers   = map[string]TagResolver{
		"env": EnvTagResolver,
	}
)

// RegisterTagResolver registers resolver for tag type. Registered resolver
// of the same tag type is silently replaced.
func RegisterTagResolver(tagType string, resolver TagResolver) {
	resolversMu.Lock()
	defer resolversMu.Unlock()
	resolvers[strings.ToLower(tagType)] = resolver
}

func getTagResolver(tagType string) (TagResolver, bool) {
	if tagType == "" {
		tagType = "env"
	}
	resolversMu.RLock()
	defer resolversMu.RUnlock()
	r, ok := resolvers[strings.ToLower(tagType)]
	return r, ok
}

// ${tag:variable} or ${variable}.
var tagRegexp = regexp.MustCompile(`\$\{(?:([^}]+?):)?([^{}]+?)\}`)

type tag struct {
	raw      string
	tagType  string
	variable string
}

func findTags(s string) []tag {
	found := tagRegexp.FindAllStringSubmatch(s, -1)
	tags := make([]tag, 0, len(found))
	for _, match := range found {
		tags = append(tags, tag{
			raw:      match[0],
			tagType:  strings.TrimSpace(match[1]),
			variable: strings.TrimSpace(match[2]),
		})
	}
	return tags
}

// HasTags returns true, if s references some variables.
func HasTags(s string) bool {
	return tagRegexp.MatchString(s)
}

// ResolveTags replaces tags of registered types with variable values.
// Tag without type is env tag. Tags of unknown types are kept as is.
// If s consists of single tag, result is casted to target bool, int, uint
// or float kind.
func ResolveTags(s string, target reflect.Type) (interface{}, error) {
	tags := findTags(s)
	res := s
	for _, t := range tags {
		resolver, ok := getTagResolver(t.tagType)
		if !ok {
			continue
		}
		val, err := resolver(t.variable)
		if err != nil {
			return nil, errors.WithMessagef(err, "resolve of '%s' failed", t.raw)
		}
		res = strings.ReplaceAll(res, t.raw, val)
	}
	if len(tags) != 1 || strings.TrimSpace(s) != tags[0].raw || target == nil || target.Kind() == reflect.String {
		return res, nil
	}
	casted, err := cast(strings.TrimSpace(res), target)
	switch {
	case errors.Is(err, errUnsupportedKind):
		return res, nil
	case err != nil && target.PkgPath() != "":
		// Named types like time.Duration are parsed by next decode hooks.
		return res, nil
	}
	return casted, err
}

var errUnsupportedKind = errors.New("unsupported kind")

func cast(v string, t reflect.Type) (interface{}, error) {
	result := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		result.SetString(v)
	case reflect.Bool:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrapf(ErrCantCast, "'%s' to %s", v, t)
		}
		result.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(v, 0, t.Bits())
		if err != nil {
			return nil, errors.Wrapf(ErrCantCast, "'%s' to %s", v, t)
		}
		result.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(v, 0, t.Bits())
		if err != nil {
			return nil, errors.Wrapf(ErrCantCast, "'%s' to %s", v, t)
		}
		result.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(v, t.Bits())
		if err != nil {
			return nil, errors.Wrapf(ErrCantCast, "'%s' to %s", v, t)
		}
		result.SetFloat(f)
	default:
		return nil, errUnsupportedKind
	}
	return result.Interface(), nil
}
