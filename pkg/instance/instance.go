package instance

import (
	"os"
	"strings"
)

// EnvWorkerID overrides the generated worker identity.
const EnvWorkerID = "STOREFRONT_WORKER_ID"

// GetID identifies this process in cron locks and broker client ids.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(EnvWorkerID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
