package instance

import "os"

// GetID returns the process instance identifier or a default value.
// DYNO covers Heroku-style platforms, WORKER_ID covers everything else.
func GetID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	return "local"
}
