// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package loader contains factory.Loader implementations: units registered
// in process table, declarative manifests on file system, Go plugin shared
// objects, and chain of them.
package loader
