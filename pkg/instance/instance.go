package instance

import "os"

// GetID identifies this process in lock owner tokens and logs.
// WORKER_ID wins, then the host name.
func GetID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "sgtm-0"
}
