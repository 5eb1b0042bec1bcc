// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Loader loads unit of code, that is expected to register some derivatives.
// Load should return nil on success, error that matches ErrUnitNotFound if
// there is no unit at path, or any other error, if unit was found, but failed
// to load. Load should be idempotent: unit that has been loaded once, is
// successfully loaded on every next call without side effects.
type Loader interface {
	Load(path string) error
}

// LoaderFunc is an adapter to allow the use of ordinary functions as Loader.
type LoaderFunc func(path string) error

func (f LoaderFunc) Load(path string) error { return f(path) }

// NopLoader finds nothing. It is default family loader, so by default every
// derivative should be registered before it is resolved.
var NopLoader Loader = LoaderFunc(func(path string) error {
	return errors.Wrapf(ErrUnitNotFound, "no loader to load '%s'", path)
})

// LoadStats contains family load attempts counters.
type LoadStats struct {
	Attempts int64
	Loaded   int64
	NotFound int64
	Failed   int64
}

type loadStats struct {
	attempts atomic.Int64
	loaded   atomic.Int64
	notFound atomic.Int64
	failed   atomic.Int64
}

// Stats returns load attempts counters.
func (f *Family) Stats() LoadStats {
	return LoadStats{
		Attempts: f.stats.attempts.Load(),
		Loaded:   f.stats.loaded.Load(),
		NotFound: f.stats.notFound.Load(),
		Failed:   f.stats.failed.Load(),
	}
}

// Load tries to load unit that defines derivative with passed name, and
// returns path of loaded unit.
// Candidate paths are generated for every search dir in declaration order,
// and tried one by one, until some unit is loaded. If no unit has been found,
// *NotFoundError with all tried paths is returned. If some units were found
// but failed to load, first such error is returned as *LoadError.
// Load doesn't check, that loaded unit has registered something.
func (f *Family) Load(name string) (path string, err error) {
	log := f.logger()
	moduleName := f.ModuleName(name)
	log.Debug("Loading derivative", zap.String("name", name), zap.String("module", moduleName))
	f.mu.RLock()
	dirs, loader := f.dirs, f.loader
	f.mu.RUnlock()
	if loader == nil {
		loader = NopLoader
	}
	if len(dirs) == 0 {
		dirs = []string{""}
	}
	var (
		tried  []string
		fatals []*LoadError
	)
	for _, dir := range dirs {
		for _, candidate := range f.CandidatePaths(moduleName, strings.TrimSpace(dir)) {
			log.Debug("Trying candidate", zap.String("path", candidate))
			tried = append(tried, candidate)
			err := f.loadUnit(loader, candidate)
			switch {
			case err == nil:
				f.stats.loaded.Inc()
				log.Info("Unit loaded without error", zap.String("path", candidate))
				return candidate, nil
			case IsNotFound(err):
				f.stats.notFound.Inc()
				log.Debug("No unit at candidate path, trying the next alternative",
					zap.String("path", candidate), zap.Error(err))
			default:
				f.stats.failed.Inc()
				fatals = append(fatals, &LoadError{Path: candidate, Err: err})
				log.Error("Unit found, but failed to load", zap.String("path", candidate), zap.Error(err))
			}
		}
	}
	if len(fatals) == 0 {
		err = &NotFoundError{FactoryType: f.factoryType, ModuleName: moduleName, Tried: tried}
		log.Error("Derivative not found", zap.Error(err))
		return "", err
	}
	log.Debug("Returning first load error", zap.Int("errors", len(fatals)))
	return "", fatals[0]
}

func (f *Family) loadUnit(loader Loader, path string) (err error) {
	f.stats.attempts.Inc()
	defer func() {
		if r := recover(); r != nil {
			if rErr, ok := r.(error); ok {
				err = errors.Wrapf(rErr, "panic while loading '%s'", path)
				return
			}
			err = errors.Errorf("panic while loading '%s': %v", path, r)
		}
	}()
	return loader.Load(path)
}

// ModuleName returns unique part of derivative name, used to generate
// candidate paths: namespace and factory type suffix are stripped from names
// like "ns.FooPlugin", other names are returned as is.
func (f *Family) ModuleName(name string) string {
	loc := f.moduleNameRegexp.FindStringSubmatchIndex(name)
	if loc == nil {
		return name
	}
	return name[:loc[0]] + name[loc[2]:loc[3]] + name[loc[1]:]
}

// CandidatePaths returns paths where unit of module could be found, in order
// they should be tried. For "Socket" module of "Driver" family in "drivers"
// dir it returns:
//
//	drivers/socket_driver
//	drivers/socket_Driver
//	drivers/Socket_Driver
//	drivers/socketdriver
//	drivers/socketDriver
//	drivers/SocketDriver
//	drivers/socket
//	drivers/Socket
func (f *Family) CandidatePaths(moduleName string, dir string) []string {
	suffix := f.factoryType
	lowerSuffix := strings.ToLower(suffix)
	lower := strings.ToLower(moduleName)
	permutations := []string{
		moduleName,
		lower,
		moduleName + suffix,
		lower + suffix,
		lower + lowerSuffix,
		moduleName + "_" + suffix,
		lower + "_" + suffix,
		lower + "_" + lowerSuffix,
	}
	paths := make([]string, 0, len(permutations))
	for _, p := range permutations {
		if dir != "" {
			p = strings.TrimRight(dir, "/") + "/" + p
		}
		if !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}
	return paths
}
