package model

import (
	"fmt"
	"time"
)

// ItemType identifies the kind of local mutation carried by a SyncItem.
type ItemType string

const (
	TypeProgress       ItemType = "progress"
	TypeQuizResult     ItemType = "quiz_result"
	TypeBookmark       ItemType = "bookmark"
	TypeNote           ItemType = "note"
	TypeCourseProgress ItemType = "course_progress"
)

// ItemTypes lists every valid item type in declaration order.
var ItemTypes = []ItemType{
	TypeProgress,
	TypeQuizResult,
	TypeBookmark,
	TypeNote,
	TypeCourseProgress,
}

// Valid reports whether t is one of the declared item types.
func (t ItemType) Valid() bool {
	for _, v := range ItemTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseItemType converts s to an ItemType, rejecting unknown values.
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid item type %q: must be one of %v", s, ItemTypes)
	}
	return t, nil
}

// Policy is a conflict-resolution strategy.
type Policy string

const (
	// PolicyLocal keeps the local payload and overwrites the remote record.
	PolicyLocal Policy = "local"
	// PolicyRemote keeps the remote payload and discards the local mutation.
	PolicyRemote Policy = "remote"
	// PolicyMerge shallow-merges both payloads, local keys winning.
	PolicyMerge Policy = "merge"
	// PolicyManual records the conflict and waits for an explicit decision.
	PolicyManual Policy = "manual"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyLocal, PolicyRemote, PolicyMerge, PolicyManual:
		return true
	}
	return false
}

// IsAuto reports whether p resolves without human input.
func (p Policy) IsAuto() bool {
	return p == PolicyLocal || p == PolicyRemote || p == PolicyMerge
}

// OrDefault returns p, or PolicyManual when p is empty.
func (p Policy) OrDefault() Policy {
	if p == "" {
		return PolicyManual
	}
	return p
}

// ParsePolicy converts s to a Policy. The empty string maps to PolicyManual.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return PolicyManual, nil
	}
	p := Policy(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid conflict policy %q: must be local, remote, merge or manual", s)
	}
	return p, nil
}

// SyncItem is a queued local mutation awaiting reconciliation.
type SyncItem struct {
	ID                 string    `json:"id"`
	Type               ItemType  `json:"type"`
	Payload            Payload   `json:"payload"`
	Timestamp          time.Time `json:"timestamp"`
	Version            int       `json:"version"`
	ConflictResolution Policy    `json:"conflictResolution,omitempty"`
}

// Clone returns a copy of the item whose payload can be mutated freely.
func (it SyncItem) Clone() SyncItem {
	out := it
	out.Payload = it.Payload.Clone()
	return out
}

// RecordKey identifies the logical record the item mutates.
// It is the payload's "id" field when present, the item id otherwise.
func (it SyncItem) RecordKey() string {
	if id, ok := it.Payload["id"]; ok {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
		if id != nil {
			return fmt.Sprint(id)
		}
	}
	return it.ID
}

// Conflict is a detected divergence between a local item and its remote record.
type Conflict struct {
	ID         string     `json:"id"`
	ItemID     string     `json:"itemId"`
	Type       ItemType   `json:"type"`
	LocalItem  SyncItem   `json:"localItem"`
	RemoteItem SyncItem   `json:"remoteItem"`
	Resolution Policy     `json:"resolution"`
	Resolved   bool       `json:"resolved"`
	DetectedAt time.Time  `json:"detectedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// SyncResult summarizes one reconciliation cycle.
type SyncResult struct {
	ID           string     `json:"id,omitempty"`
	Success      bool       `json:"success"`
	SyncedItems  int        `json:"syncedItems"`
	Conflicts    []Conflict `json:"conflicts"`
	Errors       []string   `json:"errors"`
	LastSyncTime time.Time  `json:"lastSyncTime"`
	DurationMS   int64      `json:"durationMs"`
}

// NewSyncResult returns a successful, empty result stamped with now.
// Conflicts and Errors are empty slices so they encode as [] rather than null.
func NewSyncResult(now time.Time) SyncResult {
	return SyncResult{
		Success:      true,
		Conflicts:    []Conflict{},
		Errors:       []string{},
		LastSyncTime: now,
	}
}
