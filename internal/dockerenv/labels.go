package dockerenv

import "time"

// Label keys stamped on every container, volume, and network created by this
// system. The cleanup scanner discovers orphaned resources by these labels,
// so a resource created without them can never be reclaimed.
const (
	// LabelManaged marks a resource as owned by mcpbr (value is always "true")
	LabelManaged = "mcpbr"

	// LabelInstance carries the task instance id
	LabelInstance = "mcpbr.instance"

	// LabelSession carries the run session id
	LabelSession = "mcpbr.session"

	// LabelTimestamp carries the creation time as RFC3339 UTC
	LabelTimestamp = "mcpbr.timestamp"
)

// Labels builds the identifying label set for a resource. All values are
// strings; callers must pass instance ids already normalized at the task
// ingestion boundary.
func Labels(instanceID, sessionID string, createdAt time.Time) map[string]string {
	return map[string]string{
		LabelManaged:   "true",
		LabelInstance:  instanceID,
		LabelSession:   sessionID,
		LabelTimestamp: createdAt.UTC().Format(time.RFC3339),
	}
}
