package instance

import "github.com/angelmondragon/dailyledger/pkg/env"

// GetID returns the process instance identifier used in startup logs.
// DAILYLEDGER_INSTANCE_ID wins over the platform-provided DYNO.
func GetID() string {
	return env.First("local", "DAILYLEDGER_INSTANCE_ID", "DYNO")
}
