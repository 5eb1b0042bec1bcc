// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package loader

import (
	"plugin"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/yandex/pluginfactory/core/factory"
)

const SharedObjectExt = ".so"

// SharedObjects loads Go plugins built with -buildmode=plugin. Derivatives
// should be registered in plugin package init func.
// Opening the same plugin twice is no-op, so SharedObjects is idempotent.
type SharedObjects struct {
	fs   afero.Fs
	open func(path string) error
}

var _ factory.Loader = (*SharedObjects)(nil)

// NewSharedObjects creates loader of "<path>.so" files.
func NewSharedObjects() *SharedObjects {
	return &SharedObjects{
		fs: afero.NewOsFs(),
		open: func(path string) error {
			_, err := plugin.Open(path)
			return err
		},
	}
}

func (l *SharedObjects) Load(path string) error {
	file := path + SharedObjectExt
	exists, err := afero.Exists(l.fs, file)
	if err != nil {
		return errors.Wrapf(err, "shared object '%s' stat failed", file)
	}
	if !exists {
		return errors.Wrapf(factory.ErrUnitNotFound, "no shared object '%s'", file)
	}
	err = l.open(file)
	if err != nil {
		return errors.Wrapf(err, "shared object '%s' open failed", file)
	}
	return nil
}
