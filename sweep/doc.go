// Package sweep drives parameter-grid benchmarks.
//
// A Plan names one index family, the precisions to run it at, and two
// grids: build-time and search-time hyperparameters. For every precision
// the driver builds one index per build combination and then searches it
// under every search combination, query-batch size and k:
//
//	for precision
//	  for build combination       (one Build)
//	    for search combination
//	      for nq
//	        for k                 (one timed Search, one report row)
//
// The sweep itself is sequential. Families parallelize internally through
// the resource controller, so a timed Search is never shared with other
// benchmark work.
package sweep
