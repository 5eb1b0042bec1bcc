// Copyright (c) 2018 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package errutil

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/facebookgo/stack"
	"github.com/pkg/errors"
)

// Stack returns stack of the deepest error in err chain, that has stack
// trace attached by github.com/pkg/errors, or nil.
func Stack(err error) stack.Stack {
	var deepest StackTracer
	for err != nil {
		if st, ok := err.(StackTracer); ok {
			deepest = st
		}
		err = errors.Unwrap(err)
	}
	if deepest == nil {
		return nil
	}
	return FromStackTrace(deepest.StackTrace())
}

// FromStackTrace converts github.com/pkg/errors trace into readable frames.
func FromStackTrace(st errors.StackTrace) stack.Stack {
	frames := make(stack.Stack, 0, len(st))
	for _, f := range st {
		pc := uintptr(f) - 1
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line := fn.FileLine(pc)
		frames = append(frames, stack.Frame{
			File: file,
			Line: line,
			Name: stripPackage(fn.Name()),
		})
	}
	return frames
}

// PanicStack returns stack of panic, that is being recovered by caller.
// Should be called from deferred func.
// Frames of deferred funcs and runtime panic machinery are dropped.
func PanicStack() stack.Stack {
	s := stack.Callers(1)
	for i, frame := range s {
		if isRuntimeFrame(frame) {
			rest := s[i:]
			for len(rest) > 0 && isRuntimeFrame(rest[0]) {
				rest = rest[1:]
			}
			return rest
		}
	}
	return s
}

// DropFrames returns frames of s, for which drop returns false.
func DropFrames(s stack.Stack, drop func(f stack.Frame) bool) stack.Stack {
	filtered := make(stack.Stack, 0, len(s))
	for _, f := range s {
		if !drop(f) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// InDir returns predicate that matches non test source frames in dir.
// Frame file may be GOPATH relative, while dir is absolute.
func InDir(dir string) func(f stack.Frame) bool {
	return func(f stack.Frame) bool {
		if strings.HasSuffix(f.File, "_test.go") {
			return false
		}
		frameDir := filepath.Dir(f.File)
		return frameDir == dir || !filepath.IsAbs(frameDir) && strings.HasSuffix(dir, string(filepath.Separator)+frameDir)
	}
}

func isRuntimeFrame(f stack.Frame) bool {
	return filepath.Base(filepath.Dir(f.File)) == "runtime"
}

// stripPackage converts "github.com/a/b.(*T).Method" into "(*T).Method".
func stripPackage(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
