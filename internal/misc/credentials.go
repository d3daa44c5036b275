package misc

import (
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Separator used to visually group related log lines.
var credentialSeparator = strings.Repeat("-", 67)

// LogSavingCredentials emits a consistent message when persisting session material.
func LogSavingCredentials(path string) {
	if path == "" {
		return
	}
	// Use filepath.Clean so logs remain stable even if callers pass redundant separators.
	log.Debugf("Saving credentials to %s", filepath.Clean(path))
}

// PrintSavedCredentials tells the user where credentials ended up.
func PrintSavedCredentials(path string) {
	if path == "" {
		return
	}
	fmt.Printf("Session saved to %s\n", filepath.Clean(path))
}

// LogCredentialSeparator adds a visual separator to group auth processing logs.
func LogCredentialSeparator() {
	log.Debug(credentialSeparator)
}
