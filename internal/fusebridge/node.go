package fusebridge

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/stripefs/stripefs/internal/apperr"
	"github.com/stripefs/stripefs/internal/namespace"
)

// node is the single inode type. The accelerator keys everything by
// absolute path, so the node derives its path from its position in
// the inode tree on every call.
type node struct {
	gofuse.Inode
	bridge *bridge
}

var _ gofuse.InodeEmbedder = (*node)(nil)
var _ gofuse.NodeGetattrer = (*node)(nil)
var _ gofuse.NodeSetattrer = (*node)(nil)
var _ gofuse.NodeLookuper = (*node)(nil)
var _ gofuse.NodeReaddirer = (*node)(nil)
var _ gofuse.NodeCreater = (*node)(nil)
var _ gofuse.NodeMkdirer = (*node)(nil)
var _ gofuse.NodeRmdirer = (*node)(nil)
var _ gofuse.NodeUnlinker = (*node)(nil)
var _ gofuse.NodeRenamer = (*node)(nil)
var _ gofuse.NodeOpener = (*node)(nil)

func (n *node) fsPath() string {
	p := n.Path(nil)
	if p == "" {
		return "/"
	}
	return "/" + p
}

// joinPath appends a child name to an absolute directory path.
func joinPath(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}

// fillAttr copies a metadata snapshot into a FUSE attr struct.
func fillAttr(meta namespace.FileMetadata, out *fuse.Attr) {
	out.Mode = meta.Mode
	out.Size = uint64(meta.Size)
	out.Nlink = meta.Nlink
	out.Owner = fuse.Owner{Uid: meta.UID, Gid: meta.GID}
	out.Atime = uint64(meta.Atime)
	out.Mtime = uint64(meta.Mtime)
	out.Ctime = uint64(meta.Ctime)
}

func (n *node) newChild(ctx context.Context, meta namespace.FileMetadata) *gofuse.Inode {
	return n.NewInode(ctx, &node{bridge: n.bridge}, gofuse.StableAttr{Mode: meta.Mode & syscall.S_IFMT})
}

func (n *node) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	meta, ok := n.bridge.accel.GetMetadata(n.fsPath())
	if !ok {
		return syscall.ENOENT
	}
	fillAttr(meta, &out.Attr)
	return 0
}

func (n *node) Setattr(ctx context.Context, fh gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	path := n.fsPath()
	accel := n.bridge.accel

	if mode, ok := in.GetMode(); ok {
		if err := accel.Chmod(path, mode); err != nil {
			return apperr.Errno(err)
		}
	}

	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		meta, found := accel.GetMetadata(path)
		if !found {
			return syscall.ENOENT
		}
		if !uok {
			uid = meta.UID
		}
		if !gok {
			gid = meta.GID
		}
		if err := accel.Chown(path, uid, gid); err != nil {
			return apperr.Errno(err)
		}
	}

	if size, ok := in.GetSize(); ok {
		if err := accel.Truncate(path, int64(size)); err != nil {
			return apperr.Errno(err)
		}
	}

	atime, aok := in.GetATime()
	mtime, mok := in.GetMTime()
	if aok || mok {
		meta, found := accel.GetMetadata(path)
		if !found {
			return syscall.ENOENT
		}
		at, mt := meta.Atime, meta.Mtime
		if aok {
			at = atime.Unix()
		}
		if mok {
			mt = mtime.Unix()
		}
		if err := accel.Utimens(path, at, mt); err != nil {
			return apperr.Errno(err)
		}
	}

	return n.Getattr(ctx, fh, out)
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	path := joinPath(n.fsPath(), name)
	meta, ok := n.bridge.accel.GetMetadata(path)
	if !ok {
		return nil, syscall.ENOENT
	}
	fillAttr(meta, &out.Attr)
	return n.newChild(ctx, meta), 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	path := n.fsPath()
	names := n.bridge.accel.ListDirectory(path)

	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		mode := uint32(syscall.S_IFREG)
		if meta, ok := n.bridge.accel.GetMetadata(joinPath(path, name)); ok {
			mode = meta.Mode & syscall.S_IFMT
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode})
	}
	return gofuse.NewListDirStream(entries), 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	path := joinPath(n.fsPath(), name)
	if err := n.bridge.accel.CreateFile(path, mode); err != nil {
		return nil, nil, 0, apperr.Errno(err)
	}

	meta, ok := n.bridge.accel.GetMetadata(path)
	if !ok {
		return nil, nil, 0, syscall.EIO
	}
	fillAttr(meta, &out.Attr)

	fh := &fileHandle{bridge: n.bridge, path: path}
	return n.newChild(ctx, meta), fh, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	path := joinPath(n.fsPath(), name)
	if err := n.bridge.accel.CreateDirectory(path, mode); err != nil {
		return nil, apperr.Errno(err)
	}

	meta, ok := n.bridge.accel.GetMetadata(path)
	if !ok {
		return nil, syscall.EIO
	}
	fillAttr(meta, &out.Attr)
	return n.newChild(ctx, meta), 0
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return apperr.Errno(n.bridge.accel.RemoveDirectory(joinPath(n.fsPath(), name)))
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return apperr.Errno(n.bridge.accel.DeleteFile(joinPath(n.fsPath(), name)))
}

func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	from := joinPath(n.fsPath(), name)

	parentPath := newParent.EmbeddedInode().Path(nil)
	toBase := "/"
	if parentPath != "" {
		toBase = "/" + parentPath
	}
	to := joinPath(toBase, newName)

	return apperr.Errno(n.bridge.accel.Rename(from, to, flags))
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	path := n.fsPath()
	if _, ok := n.bridge.accel.GetMetadata(path); !ok {
		return nil, 0, syscall.ENOENT
	}
	return &fileHandle{bridge: n.bridge, path: path}, fuse.FOPEN_DIRECT_IO, 0
}

// fileHandle serves reads and writes for one open file.
type fileHandle struct {
	bridge *bridge
	path   string
}

var _ gofuse.FileReader = (*fileHandle)(nil)
var _ gofuse.FileWriter = (*fileHandle)(nil)
var _ gofuse.FileFlusher = (*fileHandle)(nil)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.bridge.accel.Read(h.path, dest, off)
	if err != nil {
		return nil, apperr.Errno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := h.bridge.accel.Write(h.path, data, off)
	if err != nil {
		return 0, apperr.Errno(err)
	}
	return uint32(n), 0
}

// Flush is called on close; all writes are already synchronous.
func (h *fileHandle) Flush(ctx context.Context) syscall.Errno {
	return 0
}
