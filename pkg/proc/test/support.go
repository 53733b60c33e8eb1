// Package test provides utilities for compiling the C fixture
// programs the process-control tests run against.
package test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var (
	buildMu    sync.Mutex
	buildCache = map[string]string{}
	buildDir   string
)

// FixturesDir returns the path of the _fixtures directory at the
// repository root.
func FixturesDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "_fixtures")
}

// BuildFixture compiles _fixtures/<name>.c and returns the path of the
// executable. Fixtures are built once per test run.
func BuildFixture(t testing.TB, name string) string {
	t.Helper()
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		t.Skip("fixtures target linux/amd64")
	}

	buildMu.Lock()
	defer buildMu.Unlock()

	if path, ok := buildCache[name]; ok {
		return path
	}
	if buildDir == "" {
		dir, err := os.MkdirTemp("", "sdb_fixtures")
		if err != nil {
			t.Fatalf("could not create fixture build dir: %v", err)
		}
		buildDir = dir
	}

	src := filepath.Join(FixturesDir(), name+".c")
	out := filepath.Join(buildDir, name)
	cmd := exec.Command("gcc", "-g", "-O0", "-o", out, src)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("could not build fixture %s: %v\n%s", name, err, output)
	}
	buildCache[name] = out
	return out
}

// MustHaveGcc skips the test when no C compiler is available.
func MustHaveGcc(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("gcc"); err != nil {
		t.Skip("gcc not found in PATH")
	}
}

// MustRunAsDebugger skips the test when ptrace is not permitted, for
// example under restrictive yama settings.
func MustRunAsDebugger(t testing.TB) {
	t.Helper()
	data, err := os.ReadFile("/proc/sys/kernel/yama/ptrace_scope")
	if err != nil {
		return
	}
	if len(data) > 0 && data[0] == '3' {
		t.Skip(fmt.Sprintf("ptrace disabled by yama (scope %c)", data[0]))
	}
}
