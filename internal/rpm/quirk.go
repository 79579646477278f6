// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package rpm

import (
	"context"
	"strings"
	"sync"

	"github.com/nphilipp/rpmspectool/internal/logger"
)

// conditionalsProbe expands to "1" only if rpm already knows the %defined macro.
const conditionalsProbe = "%{?defined:1}%{!?defined:0}"

// quirkResult is the lazily computed probe result for one rpm executable.
type quirkResult struct {
	once      sync.Once
	needQuirk bool
	err       error
}

var (
	quirkCacheMutex sync.Mutex
	quirkCache      = map[string]*quirkResult{}
)

// NeedsConditionalsQuirk reports whether this rpm lacks the built-in %defined, %undefined,
// %with, %without, %bcond_with and %bcond_without macros. The probe runs at most once per
// rpm executable for the lifetime of the process; a failure to run rpm is not cached.
func (t *Toolchain) NeedsConditionalsQuirk(ctx context.Context) (needQuirk bool, err error) {
	result := quirkResultFor(t.RpmProgram)

	result.once.Do(func() {
		result.needQuirk, result.err = t.probeConditionalsQuirk(ctx)
	})

	if result.err != nil {
		forgetQuirkResult(t.RpmProgram, result)
	}
	return result.needQuirk, result.err
}

func (t *Toolchain) probeConditionalsQuirk(ctx context.Context) (needQuirk bool, err error) {
	// rpm is deliberately passed its own path as the first argument. Wrapper scripts
	// around rpm report the expansion consistently this way.
	stdout, err := t.evalExpression(ctx, t.RpmProgram, EvalArgument, conditionalsProbe)
	if err != nil {
		return
	}

	needQuirk = !strings.Contains(stdout, "1")
	logger.Log.Debugf("Conditionals quirk needed for (%s): %t", t.RpmProgram, needQuirk)
	return
}

func quirkResultFor(program string) *quirkResult {
	quirkCacheMutex.Lock()
	defer quirkCacheMutex.Unlock()

	result, ok := quirkCache[program]
	if !ok {
		result = &quirkResult{}
		quirkCache[program] = result
	}
	return result
}

func forgetQuirkResult(program string, result *quirkResult) {
	quirkCacheMutex.Lock()
	defer quirkCacheMutex.Unlock()

	if quirkCache[program] == result {
		delete(quirkCache, program)
	}
}
