// Package fileutil copies files and directory trees.
package fileutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyFileMode streams src to dst, setting the given file mode on dst, and
// fails when the number of bytes written differs from the source size.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	written, err := io.Copy(out, in)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if written != info.Size() {
		return fmt.Errorf("copy size mismatch for %s: source %d bytes, copied %d bytes", src, info.Size(), written)
	}
	return nil
}

// CopyTree recursively copies the directory (or single file) at src to dst.
// dst must not exist. Symlinks are followed: the staged copy holds the
// content they point at, so it stays valid once moved to another host.
// Regular files keep their permission bits. Other file types, dangling
// links and directory link cycles are rejected.
// On error the partially written dst is left for the caller to remove.
func CopyTree(src, dst string) error {
	rootInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("copy destination %s already exists", dst)
	}
	if !rootInfo.IsDir() {
		return copyEntry(src, dst, rootInfo)
	}
	return copyDir(src, dst, rootInfo, map[string]bool{})
}

func copyDir(src, dst string, info fs.FileInfo, ancestors map[string]bool) error {
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", src, err)
	}
	if ancestors[resolved] {
		return fmt.Errorf("copy %s: symlink cycle", src)
	}
	ancestors[resolved] = true
	defer delete(ancestors, resolved)

	if err := copyEntry(src, dst, info); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", src, err)
	}
	for _, entry := range entries {
		path := filepath.Join(src, entry.Name())
		target := filepath.Join(dst, entry.Name())
		childInfo, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if childInfo.IsDir() {
			err = copyDir(path, target, childInfo, ancestors)
		} else {
			err = copyEntry(path, target, childInfo)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func copyEntry(path, target string, info fs.FileInfo) error {
	mode := info.Mode()
	switch {
	case mode.IsDir():
		if err := os.MkdirAll(target, mode.Perm()|0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", target, err)
		}
	case mode.IsRegular():
		if err := CopyFileMode(path, target, mode.Perm()); err != nil {
			return fmt.Errorf("copy %s: %w", path, err)
		}
	default:
		return fmt.Errorf("copy %s: unsupported file type %s", path, mode.Type())
	}
	return nil
}

// DirSize sums the sizes of regular files under path. A symlink to a
// regular file counts the target's size; linked directories are not
// descended.
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		var info fs.FileInfo
		switch {
		case d.Type().IsRegular():
			info, err = d.Info()
		case d.Type()&fs.ModeSymlink != 0:
			info, err = os.Stat(p)
		default:
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
