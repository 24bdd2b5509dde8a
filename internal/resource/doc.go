// Package resource owns the process-wide limits a benchmark session runs under.
//
// The Controller is constructed once before any sweep and handed to every index
// family through its environment. It governs three resources:
//
//   - Workers: separate build and search pools bound the parallelism a family may
//     use inside a single Build or Search call.
//   - Memory: reservations for converted vector matrices (fail-fast against an
//     optional hard limit).
//   - IO: a token bucket for artifact writes so persistence round trips do not
//     saturate the disk or the network.
//
// All methods are safe for concurrent use and treat a nil Controller as
// unlimited.
package resource
