// Package meshfile stores one chunk mesh per file for offline upload to a
// renderer: a JSON header line followed by a gob body, zstd compressed.
package meshfile

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"voxelmesh.ai/internal/voxel/meshdata"
)

const Version = 1

const Ext = ".mesh.zst"

type Header struct {
	Version       int    `json:"version"`
	RunID         string `json:"run_id"`
	Layer         string `json:"layer"`
	CX            int    `json:"cx"`
	CZ            int    `json:"cz"`
	Revision      uint64 `json:"revision"`
	Faces         int    `json:"faces"`
	Active        bool   `json:"active"`
	PaletteDigest string `json:"palette_digest,omitempty"`
	CreatedUnixMs int64  `json:"created_unix_ms"`
}

type File struct {
	Header Header
	Mesh   meshdata.Mesh
}

// Name is the canonical file name for a chunk mesh.
func Name(layer string, cx, cz int) string {
	return fmt.Sprintf("%s_%d_%d%s", layer, cx, cz, Ext)
}

func Write(path string, f File) (err error) {
	if f.Header.Version == 0 {
		f.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, err := json.Marshal(f.Header)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&f.Mesh); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func Read(path string) (File, error) {
	var f File
	in, err := os.Open(path)
	if err != nil {
		return f, err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return f, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	f.Header, err = readHeader(br)
	if err != nil {
		return f, err
	}
	if err := gob.NewDecoder(br).Decode(&f.Mesh); err != nil {
		return f, fmt.Errorf("gob decode: %w", err)
	}
	return f, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	in, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer in.Close()
	dec, err := zstd.NewReader(in)
	if err != nil {
		return Header{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return h, fmt.Errorf("mesh header: %w", io.ErrUnexpectedEOF)
		}
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("mesh header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("mesh header: unsupported version %d", h.Version)
	}
	return h, nil
}
