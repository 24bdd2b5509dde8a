// Package diskann implements the DISKANN family: a Vamana graph written to a
// fixed-record file in the instance work directory and searched through a
// read-only memory mapping.
//
// Each record holds one vector at the instance precision followed by its
// degree and max_degree neighbor slots, so a node is one contiguous read.
// Search is a beam search that expands up to beamwidth unexpanded nodes of
// the search_list_size best candidates per round.
//
// Build parameters: max_degree, build_list_size (default 128).
// Search parameters: search_list_size (raised to k when smaller), beamwidth.
package diskann
