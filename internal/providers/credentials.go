// file: internal/providers/credentials.go
// version: 1.0.0
// guid: 9a2b4c6d-0e1f-4a3b-8c5d-7e9f1a3b5c7d

package providers

import (
	"os"
	"strings"
)

// ResolveSecret turns a configured credential into its value. A plain string
// is used as-is; the "env:NAME" form reads the named environment variable so
// deployments can keep keys out of config files.
func ResolveSecret(configured string) string {
	configured = strings.TrimSpace(configured)
	if name, ok := strings.CutPrefix(configured, "env:"); ok {
		return strings.TrimSpace(os.Getenv(strings.TrimSpace(name)))
	}
	return configured
}
