// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package zaputil

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Callback receives entry level, and entry message joined with encoded fields.
type Callback func(level zapcore.Level, msg string)

// NewCallbackCore returns core, that passes enabled entries to callback.
// Nil callback discards entries.
func NewCallbackCore(enab zapcore.LevelEnabler, callback Callback) zapcore.Core {
	if callback == nil {
		return zapcore.NewNopCore()
	}
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		NameKey:          "logger",
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	})
	return &callbackCore{LevelEnabler: enab, enc: enc, callback: callback}
}

type callbackCore struct {
	zapcore.LevelEnabler
	enc      zapcore.Encoder
	callback Callback
}

func (c *callbackCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &callbackCore{LevelEnabler: c.LevelEnabler, enc: c.enc.Clone(), callback: c.callback}
	for _, field := range fields {
		field.AddTo(clone.enc)
	}
	return clone
}

func (c *callbackCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *callbackCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := strings.TrimSuffix(buf.String(), zapcore.DefaultLineEnding)
	buf.Free()
	c.callback(ent.Level, msg)
	return nil
}

func (c *callbackCore) Sync() error { return nil }
