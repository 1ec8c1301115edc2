// Package linepattern turns a stream of per-scan line detections from an
// optical sensor bar into a stable driving pattern.
//
// A Calculator owns three pieces of state, all fixed capacity:
//
//   - a line continuity tracker that matches detections to tracked features
//     by predicted offset (detection identifiers are never trusted),
//   - a pattern window holding a run-length history of per-scan group kinds,
//   - a stability gate that only reports a candidate pattern once it has been
//     seen on consecutive scans.
//
// Update is synchronous and must not be called concurrently. Pattern is a
// pure read of the last result.
package linepattern
