// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package zaputil

import (
	"fmt"

	"github.com/facebookgo/stack"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewStackExtractCore returns core that moves stack traces of error fields
// to zapcore.Entry.Stack on Write. Stacks are extracted from
// github.com/pkg/errors errors, and from errors that have
// Stack() stack.Stack method, like factory.ConstructionError.
// That makes error stacks readable in case of console encoder.
// WARN: Check of underlying core is not called, only its LevelEnabler is used.
// That breaks sampling and other complex entry choosing logic.
func NewStackExtractCore(c zapcore.Core) zapcore.Core {
	return &stackExtractCore{Core: c}
}

type stackExtractCore struct {
	zapcore.Core
	// Extracted from With fields.
	stacks string
}

type pkgStackedErr interface {
	error
	StackTrace() errors.StackTrace
}

type framesErr interface {
	error
	Stack() stack.Stack
}

type causer interface {
	Cause() error
}

func (c *stackExtractCore) With(fields []zapcore.Field) zapcore.Core {
	stacks, fields := extractStacks(fields)
	return &stackExtractCore{
		Core:   c.Core.With(fields),
		stacks: joinStacks(c.stacks, stacks),
	}
}

func (c *stackExtractCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	stacks, fields := extractStacks(fields)
	ent.Stack = joinStacks(ent.Stack, joinStacks(c.stacks, stacks))
	return c.Core.Write(ent, fields)
}

func (c *stackExtractCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// extractStacks returns formatted stacks of error fields, and fields where
// github.com/pkg/errors errors are replaced by their causes.
// Passed fields are never modified.
func extractStacks(fields []zapcore.Field) (stacks string, extracted []zapcore.Field) {
	extracted = fields
	var copied bool
	for i, field := range fields {
		if field.Type != zapcore.ErrorType {
			continue
		}
		var stackStr string
		switch err := field.Interface.(type) {
		case framesErr:
			if len(err.Stack()) == 0 {
				continue
			}
			stackStr = "\n" + err.Stack().String()
		case pkgStackedErr:
			stackStr = fmt.Sprintf("%+v", err.StackTrace())
			if cause, ok := err.(causer); ok {
				field.Interface = cause.Cause()
			} else {
				field = zap.String(field.Key, err.Error())
			}
		default:
			continue
		}
		if !copied {
			copied = true
			extracted = append([]zapcore.Field(nil), fields...)
		}
		extracted[i] = field
		stacks = joinStacks(stacks, field.Key+" stacktrace:"+stackStr)
	}
	return stacks, extracted
}

func joinStacks(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n" + b
	}
}
