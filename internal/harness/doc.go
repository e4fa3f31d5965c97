// Package harness runs resolution scenarios against the real engine and
// store and records a deterministic trace for golden comparison.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: membership_fallback
//	description: "What this scenario validates"
//	engine:
//	  max_retries: 1
//	fixture:
//	  communities:
//	    - { id: c1, name: Elm St, created_by: u9 }
//	  memberships:
//	    - { actor_id: u1, community_id: c1, status: active }
//	steps:
//	  - actor: u1
//	    expect: { active: c1, candidates: [c1], loading: false }
//	  - fail: FetchAllCommunities
//	    error: unavailable
//	  - refresh: true
//	  - advance: 1s
//	  - heal: true
//	  - select: c1
//
// Each step performs exactly one action:
//
//   - actor: report a signed-in identity ("" signs out)
//   - refresh: request a new cycle with a fresh retry budget
//   - select: choose among the current candidates
//   - advance: move the manual clock, firing due retry and safety timers
//   - fail: make a gateway operation ("*" for all) fail until heal, or for
//     the next n calls with times: n
//   - heal: clear injected failures
//
// # Deterministic Execution
//
// The engine runs with inline dispatch and a clock.Manual scheduler, and
// every step drains the event queue before its trace entry is recorded. The
// store is a fresh in-memory SQLite database per run.
//
// # Usage
//
//	sc, err := harness.LoadScenario("testdata/scenarios/retry_backoff.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, sc)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
