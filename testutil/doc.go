// Package testutil provides deterministic data generators and exact search
// helpers for tests across the module.
//
//	rng := testutil.NewRNG(42)
//	base := rng.ClusteredMatrix(1000, 16, 8, 0.05)
//	queries := rng.UniformMatrix(20, 16)
//	truth := testutil.BruteForce(base, queries, 10, dist)
//
// This package is intended for use in tests only.
package testutil
