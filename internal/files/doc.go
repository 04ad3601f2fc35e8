// Package files confines the file tools to the project root.
//
// A [Ledger] owns the project root and a record of every path read or written
// through it. Paths containing a ".." segment are rejected outright, absolute
// paths must lie under the root, and symlinks may not lead outside it.
//
// Reads and writes return the file's mtime in whole unix seconds. Callers hand
// that value back as an atime token when editing; [Ledger.ValidateEditable]
// and [Ledger.ValidateWritable] refuse the change with [ErrStaleRead] when
// the file on disk is newer than the token. Changes made within the same
// second as the read are not detected.
package files
