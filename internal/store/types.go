package store

// PatrolPoint is a checkpoint to be visited during a patrol round.
type PatrolPoint struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Radius      *float64 `json:"radius,omitempty"` // allowed capture radius in meters
	Scanned     bool     `json:"scanned"`
}

// Snapshot is the durable local record of at most one in-progress or
// recently-completed patrol attempt.
type Snapshot struct {
	TaskID            *string       `json:"task_id,omitempty"`
	SessionID         *int64        `json:"session_id,omitempty"`
	Points            []PatrolPoint `json:"points"`
	CompletedSessions int           `json:"completed_sessions"`
	ShiftKey          string        `json:"shift_key"`
	Remaining         *int          `json:"remaining,omitempty"`
	SessionComplete   bool          `json:"session_complete"`
}

// NextUnscanned returns the index of the first point with Scanned == false,
// or -1 if every point has been scanned. Points are always visited in list order.
func NextUnscanned(points []PatrolPoint) int {
	for i := range points {
		if !points[i].Scanned {
			return i
		}
	}
	return -1
}

// CountUnscanned returns the number of points not yet scanned.
func CountUnscanned(points []PatrolPoint) int {
	n := 0
	for i := range points {
		if !points[i].Scanned {
			n++
		}
	}
	return n
}
