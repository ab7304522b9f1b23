// Package harness runs sync scenarios as executable conformance tests.
//
// A scenario seeds an in-process remote, drives an offline.Service through a
// list of steps and then checks the final queue, conflict log, history and
// remote records. Every run uses a fresh in-memory database, a frozen clock
// and sequential ids, so the trace of a scenario is byte-for-byte stable
// and can be compared against a golden file.
//
// # Scenario Format
//
//	name: retry_budget
//	description: "A failing item stays queued once its budget is spent"
//	options:
//	  policy: local
//	  retry_attempts: 2
//	remote:
//	  - type: note
//	    key: n1
//	    payload: { id: n1, text: theirs }
//	steps:
//	  - enqueue: { type: note, payload: { id: n1, text: mine } }
//	  - save_progress: { course: c1, module: m1, progress: 50 }
//	  - fail: { item: item-1, reason: remote down }
//	  - sync:
//	      policy: manual
//	      expect: { success: false, synced: 0, errors: 1 }
//	  - heal: item-1
//	  - resolve: { item: item-1, resolution: local }
//	assertions:
//	  - type: queue_length
//	    count: 0
//	  - type: remote_record
//	    item_type: note
//	    key: n1
//	    expect: { text: mine }
//
// Items are numbered item-1, item-2, ... in enqueue order, which is how
// fail, heal and resolve steps refer to them.
//
// # Assertion Types
//
//   - queue_length: the queue holds exactly count items
//   - queue_item: item is queued with the given version
//   - remote_record: the remote record matches expect (subset match)
//   - remote_missing: the remote has no record for item_type/key
//   - conflicts: count conflicts are logged (unresolved ones only if set)
//   - history_length: count sync results are recorded
//   - progress: the local progress record matches expect (subset match)
//   - remote_calls: the remote saw count applies of item
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/retry_budget.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
