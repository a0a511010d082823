package namespace

import (
	"os"
	"syscall"
	"time"
)

// PermMask selects the permission and sticky/setid bits of a mode.
const PermMask = 0o7777

// FileMetadata is the per-path metadata record. Values returned from
// the namespace are snapshots; mutating a returned record does not
// affect the stored one.
type FileMetadata struct {
	Mode  uint32 // file-type bits OR'd with permission bits
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  int64
	Atime int64 // seconds
	Mtime int64
	Ctime int64
}

func (m FileMetadata) IsDir() bool {
	return m.Mode&syscall.S_IFMT == syscall.S_IFDIR
}

func (m FileMetadata) IsRegular() bool {
	return m.Mode&syscall.S_IFMT == syscall.S_IFREG
}

// NewFileMetadata builds the record for a freshly created regular
// file. Owner is the calling process; all three times are now.
func NewFileMetadata(perm uint32) FileMetadata {
	now := time.Now().Unix()
	return FileMetadata{
		Mode:  syscall.S_IFREG | (perm & 0o777),
		Nlink: 1,
		UID:   uint32(os.Getuid()),
		GID:   uint32(os.Getgid()),
		Size:  0,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

// NewDirMetadata builds the record for a freshly created directory.
// Nlink starts at 2 for "." and "..".
func NewDirMetadata(perm uint32) FileMetadata {
	now := time.Now().Unix()
	return FileMetadata{
		Mode:  syscall.S_IFDIR | (perm & 0o777),
		Nlink: 2,
		UID:   uint32(os.Getuid()),
		GID:   uint32(os.Getgid()),
		Size:  0,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}
