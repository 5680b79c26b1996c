package boxsh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/boxsh/boxsh/interp"
)

// memFilesystem is the default sandbox Filesystem Execute builds from
// Options.Files when the host supplies no Filesystem of its own (§6 "files
// seed"). It stores everything in an afero in-memory map — the same
// approach embedders of this AST/interpreter shape reach for when they want
// a sandboxed store backing a shell (afero.NewMemMapFs(), as opposed to
// afero.NewOsFs() for a real one) — plus a small side table for symlinks,
// since MemMapFs has no native symlink support.
type memFilesystem struct {
	fs       afero.Fs
	symlinks map[string]string
}

func newMemFilesystem(seed map[string][]byte) *memFilesystem {
	m := &memFilesystem{fs: afero.NewMemMapFs(), symlinks: make(map[string]string)}
	for name, data := range seed {
		name = cleanSeedPath(name)
		_ = m.fs.MkdirAll(path.Dir(name), 0o755)
		_ = afero.WriteFile(m.fs, name, data, 0o644)
	}
	return m
}

func cleanSeedPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func (m *memFilesystem) ReadFile(ctx context.Context, p string) ([]byte, error) {
	return afero.ReadFile(m.fs, p)
}

func (m *memFilesystem) ReadFileBuffer(ctx context.Context, p string) (io.Reader, error) {
	b, err := afero.ReadFile(m.fs, p)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

func (m *memFilesystem) WriteFile(ctx context.Context, p string, data []byte, mode interp.FileMode) error {
	if err := m.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(m.fs, p, data, os.FileMode(mode))
}

func (m *memFilesystem) AppendFile(ctx context.Context, p string, data []byte) error {
	f, err := m.fs.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func (m *memFilesystem) Mkdir(ctx context.Context, p string, opts interp.MkdirOptions) error {
	mode := opts.Mode
	if mode == 0 {
		mode = 0o755
	}
	if opts.Parents {
		return m.fs.MkdirAll(p, os.FileMode(mode))
	}
	return m.fs.Mkdir(p, os.FileMode(mode))
}

func (m *memFilesystem) Rmdir(ctx context.Context, p string) error {
	return m.fs.Remove(p)
}

func (m *memFilesystem) Unlink(ctx context.Context, p string) error {
	delete(m.symlinks, p)
	return m.fs.Remove(p)
}

func (m *memFilesystem) Stat(ctx context.Context, p string) (interp.FileInfo, error) {
	if target, ok := m.symlinks[p]; ok {
		return m.Stat(ctx, target)
	}
	info, err := m.fs.Stat(p)
	if err != nil {
		return interp.FileInfo{}, err
	}
	return toFileInfo(info), nil
}

func (m *memFilesystem) Lstat(ctx context.Context, p string) (interp.FileInfo, error) {
	if target, ok := m.symlinks[p]; ok {
		return interp.FileInfo{Name: path.Base(p), Mode: fs.ModeSymlink, Size: int64(len(target))}, nil
	}
	info, err := m.fs.Stat(p)
	if err != nil {
		return interp.FileInfo{}, err
	}
	return toFileInfo(info), nil
}

func (m *memFilesystem) ReadDir(ctx context.Context, p string) ([]fs.DirEntry, error) {
	infos, err := afero.ReadDir(m.fs, p)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = fs.FileInfoToDirEntry(info)
	}
	return entries, nil
}

func (m *memFilesystem) Rename(ctx context.Context, oldpath, newpath string) error {
	return m.fs.Rename(oldpath, newpath)
}

func (m *memFilesystem) Copy(ctx context.Context, src, dst string, opts interp.CopyOptions) error {
	info, err := m.fs.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if !opts.Recursive {
			return fmt.Errorf("%s: is a directory", src)
		}
		return m.copyDir(src, dst)
	}
	data, err := afero.ReadFile(m.fs, src)
	if err != nil {
		return err
	}
	if err := m.fs.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(m.fs, dst, data, info.Mode())
}

func (m *memFilesystem) copyDir(src, dst string) error {
	infos, err := afero.ReadDir(m.fs, src)
	if err != nil {
		return err
	}
	if err := m.fs.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, info := range infos {
		s := path.Join(src, info.Name())
		d := path.Join(dst, info.Name())
		if info.IsDir() {
			if err := m.copyDir(s, d); err != nil {
				return err
			}
			continue
		}
		data, err := afero.ReadFile(m.fs, s)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(m.fs, d, data, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func (m *memFilesystem) Exists(ctx context.Context, p string) bool {
	ok, _ := afero.Exists(m.fs, p)
	return ok
}

func (m *memFilesystem) Chmod(ctx context.Context, p string, mode interp.FileMode) error {
	return m.fs.Chmod(p, os.FileMode(mode))
}

func (m *memFilesystem) Symlink(ctx context.Context, oldname, newname string) error {
	m.symlinks[newname] = oldname
	return nil
}

func (m *memFilesystem) Readlink(ctx context.Context, p string) (string, error) {
	target, ok := m.symlinks[p]
	if !ok {
		return "", fmt.Errorf("%s: not a symlink", p)
	}
	return target, nil
}

func (m *memFilesystem) ResolvePath(base, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Clean(path.Join(base, p))
}

func toFileInfo(info os.FileInfo) interp.FileInfo {
	return interp.FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}
