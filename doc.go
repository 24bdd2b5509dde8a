// Package vecbench measures recall-versus-latency tradeoffs of approximate
// nearest-neighbor indexes across hyperparameter grids and element
// precisions (fp32, fp16, bf16).
//
// # Quick Start
//
//	ctx := context.Background()
//	b, _ := vecbench.New(vecbench.WithKs(10, 100))
//	ds, _ := b.Synthetic(ctx, dataset.DefaultSyntheticConfig())
//
//	sink := report.NewTextSink(os.Stdout)
//	err := b.Run(ctx, ds, sink, sweep.DefaultPlans()...)
//
// # Sweeps
//
// A sweep.Plan names a family and two grids. Every build combination is
// built exactly once; every search combination, query-batch size and k is
// then one timed Search scored against the ground truth:
//
//	plan := sweep.Plan{
//	    Family:     "IVF_FLAT",
//	    Precisions: []precision.Type{precision.Float32, precision.Float16},
//	    Build:      sweep.Grid{{Name: "nlist", Values: []int{1024}}},
//	    Search:     sweep.Grid{{Name: "nprobe", Values: []int{1, 8, 64}}},
//	}
//
// Set RoundTrip to persist and reload every index before it is searched.
// Artifacts go to the configured blob store (local, memory, S3 or MinIO)
// compressed with the configured codec.
//
// # Reports
//
// Rows are written synchronously to a report.Sink: the classic text
// layout, CSV, JSON Lines or SQLite. Combine them with report.MultiSink.
//
// # Errors
//
// Unknown families and shape mismatches abort the sweep before any index is
// built. Any other failure abandons the current family run, the remaining
// plans still execute, and all failures are joined into the error returned
// by Run.
package vecbench
