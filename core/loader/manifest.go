// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package loader

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/yandex/pluginfactory/core/config"
	"github.com/yandex/pluginfactory/core/factory"
	"github.com/yandex/pluginfactory/lib/errutil"
)

// Manifest declares new derivative, that extends already registered one,
// and presets its config. Example manifest at drivers/replica_driver.yaml:
//
//	name: db.ReplicaDriver
//	extends: mysql
//	config:
//	  dsn: "replica:3306"
//	  timeout: 5s
type Manifest struct {
	Name string `config:"name" validate:"derivative-name"`
	// Identifier of derivative to extend. Family base, if empty.
	Extends string                 `config:"extends"`
	Config  map[string]interface{} `config:"config"`
}

var DefaultManifestExtensions = []string{"yaml", "yml", "json", "toml"}

// Manifests loads manifests from file system. Unit at path is the first
// existing file with path base and one of extensions.
type Manifests struct {
	fs         afero.Fs
	family     *factory.Family
	extensions []string

	mu     sync.Mutex
	loaded map[string]*factory.Derivative
}

var _ factory.Loader = (*Manifests)(nil)

// NewManifests creates loader of family derivative manifests.
// DefaultManifestExtensions are used, if no extensions passed.
func NewManifests(fs afero.Fs, family *factory.Family, extensions ...string) *Manifests {
	if len(extensions) == 0 {
		extensions = DefaultManifestExtensions
	}
	return &Manifests{
		fs:         fs,
		family:     family,
		extensions: extensions,
		loaded:     make(map[string]*factory.Derivative),
	}
}

// Loaded returns derivative, that has been registered by manifest at path.
func (m *Manifests) Loaded(path string) (*factory.Derivative, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.loaded[path]
	return d, ok
}

// Load registers derivative declared by manifest at path. Manifests of
// not registered parents found in family search dirs are loaded first, in
// the same load chain, so extension cycles are reported as errors.
// Concurrent loads of the same path may both read the manifest, but only
// the first one registers derivative.
func (m *Manifests) Load(path string) error {
	return m.load(path, nil)
}

func (m *Manifests) load(path string, chain []string) error {
	if _, ok := m.Loaded(path); ok {
		return nil
	}
	chain = append(chain[:len(chain):len(chain)], path)
	file, err := m.find(path)
	if err != nil {
		return err
	}
	manifest, err := ReadManifest(m.fs, file)
	if err != nil {
		return err
	}
	if err := m.loadParent(manifest.Extends, chain); err != nil {
		return errors.WithMessagef(err, "manifest '%s'", file)
	}
	parent, err := m.family.Resolve(manifest.Extends)
	if err != nil {
		return errors.WithMessagef(err, "manifest '%s' extends '%s'", file, manifest.Extends)
	}
	if parent.Abstract() && len(manifest.Config) > 0 {
		return errors.Errorf("manifest '%s': config passed, but '%s' can't be constructed", file, parent)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loaded[path]; ok {
		return nil
	}
	presetConfig := manifest.Config
	d := parent.Extend(manifest.Name, nil, factory.WithPreset(func(conf interface{}) error {
		return config.Decode(presetConfig, conf)
	}))
	m.loaded[path] = d
	m.family.Logger().Debug("Manifest loaded",
		zap.String("file", file),
		zap.Stringer("derivative", d),
		zap.Stringer("extends", d.Parent()),
	)
	return nil
}

// loadParent loads manifest of not registered parent, if family search dirs
// have one. Parents that are not manifests are left to family loader.
func (m *Manifests) loadParent(extends string, chain []string) error {
	if extends == "" || extends == m.family.Name() {
		return nil
	}
	if _, ok := m.family.Lookup(extends); ok {
		return nil
	}
	dirs := m.family.SearchDirs()
	if len(dirs) == 0 {
		dirs = []string{""}
	}
	moduleName := m.family.ModuleName(extends)
	for _, dir := range dirs {
		for _, candidate := range m.family.CandidatePaths(moduleName, strings.TrimSpace(dir)) {
			if slices.Contains(chain, candidate) {
				return errors.Errorf("manifest at '%s' extends itself through %s",
					candidate, strings.Join(append(chain, candidate), " -> "))
			}
			err := m.load(candidate, chain)
			if factory.IsNotFound(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Manifests) find(path string) (string, error) {
	for _, ext := range m.extensions {
		file := path + "." + ext
		exists, err := afero.Exists(m.fs, file)
		if err != nil {
			return "", errors.Wrapf(err, "manifest '%s' stat failed", file)
		}
		if exists {
			return file, nil
		}
	}
	return "", errors.Wrapf(factory.ErrUnitNotFound, "no manifest at '%s' with extensions %v", path, m.extensions)
}

// ReadManifest reads manifest file in any viper supported format, and validates it.
func ReadManifest(fs afero.Fs, file string) (Manifest, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(file)
	var manifest Manifest
	err := v.ReadInConfig()
	if err != nil {
		return manifest, errors.Wrapf(err, "manifest '%s' read failed", file)
	}
	err = config.Decode(v.AllSettings(), &manifest)
	if err != nil {
		err = errors.WithMessagef(err, "manifest '%s' decode failed", file)
	}
	if manifest.Name == "" {
		err = errutil.Join(err, errors.Errorf("manifest '%s' has no derivative name", file))
	} else if validateErr := config.Validate(manifest); validateErr != nil {
		err = errutil.Join(err, errors.WithMessagef(validateErr, "manifest '%s' is invalid", file))
	}
	return manifest, err
}
