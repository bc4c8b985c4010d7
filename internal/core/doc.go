// Package core ties the validator to the outside world.
//
// It is independent of any transport. The HTTP server goes through
// [Service], which:
//
//   - builds one [validator.Validator] per resource type and caches it until
//     the catalog reports a schema change,
//   - bounds how many validations run at once with a [ValidationLimiter],
//   - applies the configured per-run timeout,
//   - reports outcomes to a [Metrics] sink and an optional [HistoryStore].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. Each
// category has a code for support reference:
//
//   - VAL001-VAL099: data does not match the schema
//   - SCH001-SCH099: resource type or schema problems
//   - FILE001-FILE099: unreadable or oversized input
//   - REQ001-REQ099: cancelled, timed out or throttled requests
package core
