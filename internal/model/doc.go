// Package model provides the value types shared by every learnsync package.
//
// This package contains type definitions and pure functions only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Payloads are opaque JSON objects (map[string]any); the sync layer never
//     interprets them beyond the optional "id" record key
//   - JSON tags use camelCase to match the documents exchanged with the
//     remote gateway and the export format
//   - Content-addressed ids (conflicts, payload fingerprints) are computed
//     from canonical JSON with domain separation, see hash.go
package model
