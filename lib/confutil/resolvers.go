// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package confutil

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// EnvTagResolver resolves ${env:NAME} to environment variable value.
func EnvTagResolver(name string) (string, error) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", errors.Wrapf(ErrVariableNotFound, "env '%s'", name)
	}
	return val, nil
}

// NewPropertyTagResolver returns resolver of ${property:<file>#<key>} tags,
// that reads "key=value" lines of properties file.
// Example: dsn: '${property:/etc/drivers/secret.properties#replica_dsn}'
func NewPropertyTagResolver(fs afero.Fs) TagResolver {
	return func(in string) (string, error) {
		split := strings.SplitN(in, "#", 2)
		if len(split) != 2 {
			return "", errors.Errorf("property should be '<file>#<key>', but have '%s'", in)
		}
		filename, key := split[0], split[1]
		file, err := fs.Open(filename)
		if err != nil {
			return "", errors.Wrapf(err, "properties file open failed")
		}
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			kv := strings.SplitN(scanner.Text(), "=", 2)
			if len(kv) == 2 && strings.TrimSpace(kv[0]) == key {
				return strings.TrimSpace(kv[1]), nil
			}
		}
		if err := scanner.Err(); err != nil {
			return "", errors.Wrapf(err, "properties file '%s' read failed", filename)
		}
		return "", errors.Wrapf(ErrVariableNotFound, "property '%s' in '%s'", key, filename)
	}
}

func init() {
	RegisterTagResolver("property", NewPropertyTagResolver(afero.NewOsFs()))
}
