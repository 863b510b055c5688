// Package fs is the file system seam of the local blob store.
//
// Production code uses Default. Tests wrap it in a FaultyFS to make writes,
// syncs, closes or renames of selected files fail:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("part-1", fs.Fault{FailOnSync: true, FailAfterBytes: -1})
//
// Calls take no context: local file operations are not interruptible.
package fs
