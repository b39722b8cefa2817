package instance

import "os"

// GetID returns the identifier of this process for logs and scheduler claims.
func GetID() string {
	if id := os.Getenv("PEERLINK_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "peerlink-0"
}
