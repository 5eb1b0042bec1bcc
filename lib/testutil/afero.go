// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package testutil

import (
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type TestingT interface {
	mock.TestingT
}

// NewMemFs returns in memory fs with files, created by name to content map.
func NewMemFs(t TestingT, files map[string]string) afero.Fs {
	getHelper(t).Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		err := afero.WriteFile(fs, name, []byte(content), 0644)
		require.NoError(t, err)
	}
	return fs
}

func getHelper(t TestingT) helper {
	var tInterface interface{} = t
	if h, ok := tInterface.(helper); ok {
		return h
	}
	return nopHelper{}
}

type nopHelper struct{}

func (nopHelper) Helper() {}

type helper interface {
	Helper()
}
