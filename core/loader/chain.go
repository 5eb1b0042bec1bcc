// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package loader

import (
	"github.com/pkg/errors"

	"github.com/yandex/pluginfactory/core/factory"
)

// Chain tries loaders in order. First loader that has found unit at path
// determines load result.
type Chain []factory.Loader

var _ factory.Loader = Chain(nil)

func (c Chain) Load(path string) error {
	for _, l := range c {
		err := l.Load(path)
		if !factory.IsNotFound(err) {
			return err
		}
	}
	return errors.Wrapf(factory.ErrUnitNotFound, "no unit at '%s' in any of %v loaders", path, len(c))
}
