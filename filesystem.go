package boxsh

import "github.com/boxsh/boxsh/interp"

// Filesystem is the sandboxed virtual filesystem every path-touching
// operation goes through (§6 "Filesystem trait"). Path resolution
// normalizes "."/".." and never escapes whatever root the host configured.
type Filesystem = interp.Filesystem

// FileInfo describes one Filesystem entry.
type FileInfo = interp.FileInfo

// FileMode mirrors the portable permission/type bits io/fs.FileMode defines.
type FileMode = interp.FileMode

// MkdirOptions controls Filesystem.Mkdir.
type MkdirOptions = interp.MkdirOptions

// CopyOptions controls Filesystem.Copy.
type CopyOptions = interp.CopyOptions
