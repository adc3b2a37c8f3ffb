package instance

import (
	"os"
	"strings"
)

// Env vars consulted, in order, for the process identity that goes on every log line.
var idEnvVars = []string{"ORDERCORE_INSTANCE_ID", "DYNO", "HOSTNAME"}

// ID returns the identifier of this process, or "<service>-local" when the
// platform sets none.
func ID(service string) string {
	for _, key := range idEnvVars {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if service == "" {
		service = "ordercore"
	}
	return service + "-local"
}
