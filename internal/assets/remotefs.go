package assets

import (
	"bytes"
	"context"
	"io/fs"
	"net/url"
	"time"
)

// remoteFS resolves relative glTF URIs against the document URL.
type remoteFS struct {
	ctx     context.Context
	fetcher *Fetcher
	base    *url.URL
}

func (r *remoteFS) resolve(name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	ref, err := url.Parse(name)
	if err != nil {
		return "", &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return r.base.ResolveReference(ref).String(), nil
}

// ReadFile implements fs.ReadFileFS.
func (r *remoteFS) ReadFile(name string) ([]byte, error) {
	u, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := r.fetcher.get(r.ctx, u)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

// Open implements fs.FS.
func (r *remoteFS) Open(name string) (fs.File, error) {
	data, err := r.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &memFile{Reader: bytes.NewReader(data), name: name, size: int64(len(data))}, nil
}

type memFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *memFile) Stat() (fs.FileInfo, error) { return memInfo{f.name, f.size}, nil }
func (f *memFile) Close() error               { return nil }

type memInfo struct {
	name string
	size int64
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o444 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }
