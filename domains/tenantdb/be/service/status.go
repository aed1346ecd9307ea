package service

// Status is the lifecycle state of a tenant database record.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusMigrating    Status = "migrating"
	StatusSuspended    Status = "suspended"
	StatusFailed       Status = "failed"
)

// transitions holds the allowed lifecycle moves. FAILED is additionally
// reachable from every non-terminal state (handled in CanTransition), and
// soft deletion is only legal from ACTIVE, FAILED or SUSPENDED.
var transitions = map[Status][]Status{
	StatusProvisioning: {StatusActive},
	StatusActive:       {StatusMigrating, StatusSuspended},
	StatusMigrating:    {StatusActive},
	StatusSuspended:    {StatusActive},
	StatusFailed:       {StatusProvisioning, StatusActive},
}

// deletableStatuses are the states a record may be soft-deleted from.
var deletableStatuses = map[Status]bool{
	StatusActive:    true,
	StatusFailed:    true,
	StatusSuspended: true,
}

// StatusFromString converts a stored string into a Status; unknown values map
// to FAILED so a corrupted row is surfaced rather than silently treated as healthy.
func StatusFromString(s string) Status {
	switch Status(s) {
	case StatusProvisioning, StatusActive, StatusMigrating, StatusSuspended, StatusFailed:
		return Status(s)
	default:
		return StatusFailed
	}
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	if to == StatusFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanDelete reports whether a record in the given status may be soft-deleted.
func CanDelete(from Status) bool {
	return deletableStatuses[from]
}
