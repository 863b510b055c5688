// Package mmap maps blob files read-only into memory.
//
// LocalStore serves checkpoint parts from mappings so that decoding reads
// straight from the page cache:
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix platforms use mmap(2) and madvise(2); Windows uses MapViewOfFile and
// ignores access hints.
package mmap
