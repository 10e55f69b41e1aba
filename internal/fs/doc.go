// Package fs is the file system seam of the append-only log and the local
// blob store.
//
// Production code goes through [Default], a thin wrapper over package os.
// Tests wrap it in a [FaultyFS] to make writes, syncs, closes or renames of
// selected files fail:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("appendonly.aof", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
//
// Calls take no context.Context. Local file operations cannot be interrupted
// at the syscall level; remote storage goes through package blobstore.
package fs
