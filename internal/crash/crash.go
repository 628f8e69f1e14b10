/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report and gets pending layout
// saves onto disk before the process exits.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "tigerlauncher/internal/log"
	"tigerlauncher/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

const (
	// FlushTimeout bounds how long Recover waits for pending saves.
	FlushTimeout = 5 * time.Second
	// DirName is the subdirectory of the data dir that holds crash reports.
	DirName = "crash"
)

// Flusher is implemented by *storage.WriteBehind.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Target tells Recover where to put the report and what to flush.
type Target struct {
	// Dir receives crash-<stamp>.log; empty means the OS temp dir.
	Dir     string
	Flusher Flusher
}

// Recover captures a panic, logs it with its stack, writes a report file,
// flushes pending saves and exits with code 2. t may be filled in after the
// defer statement and may be nil.
//
// Usage: defer crash.Recover(&target)
func Recover(t *Target) {
	if r := recover(); r != nil {
		if t == nil {
			t = &Target{}
		}
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, err := writeReport(t.Dir, r, stack)
		if err != nil {
			l.Error("crash report failed", slog.Any("err", err))
		}
		if t.Flusher != nil {
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if err := t.Flusher.Flush(ctx); err != nil {
				l.Error("flushing pending saves failed", slog.Any("err", err))
			} else {
				l.Info("pending saves flushed")
			}
			cancel()
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		exitFn(2)
	}
}

func writeReport(dir string, panicVal any, stack []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Tiger Launcher Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}
