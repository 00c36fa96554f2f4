// Package fileutil provides transparent compression for bibliography
// file I/O: readers sniff the compression format from magic bytes,
// writers compress by file extension, so a refs.bib.xz works everywhere
// a refs.bib does.
package fileutil

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/CedarBib/core/errors"
)

// CompressionType specifies a compression algorithm.
type CompressionType string

const (
	// CompressionNone indicates uncompressed data.
	CompressionNone CompressionType = "none"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip CompressionType = "gzip"
	// CompressionXZ uses XZ/LZMA2 compression (best ratio).
	CompressionXZ CompressionType = "xz"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

// DetectCompression sniffs the compression type from a file's magic
// bytes. Files too short for any magic are plain.
func DetectCompression(path string) (CompressionType, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.NewIO("open", path, err)
	}
	defer file.Close()

	magic := make([]byte, len(xzMagic))
	n, err := io.ReadFull(file, magic)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", errors.NewIO("read magic bytes", path, err)
	}
	return detect(magic[:n]), nil
}

func detect(magic []byte) CompressionType {
	if bytes.HasPrefix(magic, xzMagic) {
		return CompressionXZ
	}
	if bytes.HasPrefix(magic, gzipMagic) {
		return CompressionGzip
	}
	return CompressionNone
}

// CompressionForPath chooses a compression type from the file extension:
// .xz, .gz, or none.
func CompressionForPath(path string) CompressionType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		return CompressionXZ
	case ".gz":
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// readCloser pairs a decompressing reader with the closers beneath it.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenReader opens path for reading, decompressing transparently based
// on the file's magic bytes.
func OpenReader(path string) (io.ReadCloser, error) {
	compression, err := DetectCompression(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}

	switch compression {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, errors.NewIO("read gzip header", path, err)
		}
		return &readCloser{Reader: gzReader, closers: []io.Closer{gzReader, file}}, nil
	case CompressionXZ:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			file.Close()
			return nil, errors.NewIO("read xz header", path, err)
		}
		return &readCloser{Reader: xzReader, closers: []io.Closer{file}}, nil
	default:
		return file, nil
	}
}

// ReadFile reads the whole file at path, decompressing transparently.
func ReadFile(path string) ([]byte, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return data, nil
}

// WriteFile writes data to path, compressing based on the file
// extension.
func WriteFile(path string, data []byte) error {
	switch CompressionForPath(path) {
	case CompressionGzip:
		return writeCompressed(path, data, func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.BestCompression)
		})
	case CompressionXZ:
		return writeCompressed(path, data, func(w io.Writer) (io.WriteCloser, error) {
			return xz.NewWriter(w)
		})
	default:
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.NewIO("write", path, err)
		}
		return nil
	}
}

func writeCompressed(path string, data []byte, newWriter func(io.Writer) (io.WriteCloser, error)) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}

	cw, err := newWriter(file)
	if err != nil {
		file.Close()
		return errors.NewIO("create compressor", path, err)
	}
	if _, err := cw.Write(data); err != nil {
		cw.Close()
		file.Close()
		return errors.NewIO("write", path, err)
	}
	if err := cw.Close(); err != nil {
		file.Close()
		return errors.NewIO("flush compressor", path, err)
	}
	if err := file.Close(); err != nil {
		return errors.NewIO("close", path, err)
	}
	return nil
}
