package io

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CreateFS defines a file system interface that supports creating files.
// It extends basic file system operations with write capabilities for
// marshaling drum tracks.
type CreateFS interface {
	fs.FS
	// Create creates a new file for writing.
	Create(name string) (file io.WriteCloser, err error)
}

// DirFS is a CreateFS rooted at a host directory.
type DirFS string

var _ CreateFS = DirFS("")

// Open opens a file in the directory.
func (dir DirFS) Open(name string) (fs.File, error) {
	return os.DirFS(string(dir)).Open(name)
}

// Create creates a file in the directory, creating the directory if needed.
func (dir DirFS) Create(name string) (file io.WriteCloser, err error) {
	if !fs.ValidPath(name) {
		err = &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
		return
	}

	err = os.MkdirAll(string(dir), 0755)
	if err != nil {
		return
	}

	return os.Create(filepath.Join(string(dir), filepath.FromSlash(name)))
}
