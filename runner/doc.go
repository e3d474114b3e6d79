// Package runner drives step trackers for a whole test run.
//
// The main components are:
//   - Recorder: hands out one steps.Tracker per test, shares a single RunStatus
//     between them, and collects every finalized outcome into a collection
//   - Case: a test body executed under its own tracker by Recorder.Execute
//
// Trackers are never shared between goroutines; the recorder's collected
// outcomes and the shared RunStatus are the only state touched concurrently.
package runner
