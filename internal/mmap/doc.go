// Package mmap provides read-only memory-mapped file access.
//
// Partition files of a local snapshot are mapped instead of read so that
// decoding starts without copying the file through a heap buffer.
//
//	m, err := mmap.Open("partition-0000.silo")
//	if err != nil { ... }
//	defer m.Close()
//
//	m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// On Unix the mapping uses mmap(2) with madvise(2) hints. On Windows it uses
// CreateFileMapping/MapViewOfFile and Advise is a no-op.
//
// A Mapping is safe for concurrent reads. Close is idempotent, but callers
// must not touch the slice returned by Bytes after Close returns.
package mmap
