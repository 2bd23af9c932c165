package domain

import "time"

// MemoryEntry is one completed interaction kept in a thread's sliding window.
type MemoryEntry struct {
	Prompt     string
	Capability string
	Response   string
	Timestamp  time.Time
}

// TurnRecord is a single audited turn.
type TurnRecord struct {
	PK         string
	SK         string
	TurnID     string
	ThreadID   int64
	Prompt     string
	Capability string
	Source     Source
	Rationale  string
	Response   string
	CreatedAt  string
	TTL        int64
}

// ThreadMeta stores aggregate audit state for a thread.
type ThreadMeta struct {
	PK           string
	SK           string
	ThreadID     int64
	LastActivity string
	Turns        int
	TTL          int64
}
