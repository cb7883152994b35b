//go:build !windows

package sqlstmt

import (
	"runtime"

	"github.com/ebitengine/purego"
)

// ansiSuffix is appended to the names of string-taking entry points.
// unixODBC and iODBC export the ANSI variants under the plain names.
const ansiSuffix = ""

func libraryCandidates() []string {
	if runtime.GOOS == "darwin" {
		return []string{
			"/opt/homebrew/lib/libodbc.2.dylib",
			"/usr/local/lib/libodbc.2.dylib",
			"/opt/homebrew/lib/libodbc.dylib",
			"/usr/local/lib/libodbc.dylib",
			"libodbc.2.dylib",
		}
	}
	return []string{
		"/usr/lib/x86_64-linux-gnu/libodbc.so.2",
		"/usr/lib/aarch64-linux-gnu/libodbc.so.2",
		"/usr/lib64/libodbc.so.2",
		"libodbc.so.2",
	}
}

func loadODBCLibrary(libPath string) (uintptr, error) {
	return purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}
