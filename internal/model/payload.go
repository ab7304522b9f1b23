package model

import "maps"

// Payload is the opaque structured data carried by a SyncItem.
// Values follow encoding/json decoding rules (numbers are float64).
type Payload map[string]any

// Clone returns a shallow copy of p. Nested maps and slices are shared.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// MergeShallow returns {...remote, ...local}: every key of remote, overwritten
// by every key of local. Nested objects are replaced wholesale, never merged.
// Neither input is modified.
func MergeShallow(remote, local Payload) Payload {
	out := make(Payload, len(remote)+len(local))
	for k, v := range remote {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}
