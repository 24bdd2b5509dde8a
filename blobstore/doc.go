// Package blobstore stores the serialized artifacts of persisted index
// handles.
//
// A BlobStore holds immutable named blobs. Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, atomic writes and mmap reads
//   - MemoryStore: in-process map, for tests
//   - s3.Store: Amazon S3 with ranged reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
