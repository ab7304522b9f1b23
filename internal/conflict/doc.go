// Package conflict resolves divergence between queued local items and the
// remote records they collide with, and keeps the persistent conflict log.
//
// Policies:
//   - local: the local payload overwrites the remote record
//   - remote: the remote payload replaces the local copy
//   - merge: shallow merge of both payloads, local keys winning, written to
//     both sides
//   - manual: the conflict is logged unresolved and the item stays queued
//
// A queue item is only removed after its resolution has taken effect on
// every side it touches. Failed resolutions leave the item queued and the
// conflict unresolved with its error recorded.
package conflict
