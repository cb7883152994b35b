//go:build windows

package sqlstmt

import (
	"fmt"
	"syscall"
)

const ansiSuffix = "A"

// odbc32.dll lives in the system directory, so the loader search is enough.
func libraryCandidates() []string {
	return []string{"odbc32.dll"}
}

func loadODBCLibrary(libPath string) (uintptr, error) {
	h, err := syscall.LoadLibrary(libPath)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", libPath, err)
	}
	return uintptr(h), nil
}
