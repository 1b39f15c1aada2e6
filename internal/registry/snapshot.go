package registry

// Persistence keys are fixed strings; payloads are JSON snapshots carrying an
// embedded version field consumers may ignore.
const (
	snapshotVersion = 1

	parametersKey = "scanforge:parameters"
	columnsKey    = "scanforge:columns"
	sessionsKey   = "scanforge:sessions"
)
