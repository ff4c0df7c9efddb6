// Package pngmeta reads the workflow metadata ComfyUI embeds in the PNGs it
// renders: the workspace graph under the "workflow" text key and the compiled
// payload under "prompt". Only the chunk layout is parsed; pixel data is
// never decoded.
package pngmeta

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ErrNotPNG marks input that does not carry the PNG signature.
var ErrNotPNG = errors.New("not valid PNG data")

// Metadata is what a ComfyUI render embeds: either document may be absent.
type Metadata struct {
	// Workflow is the raw workspace graph document.
	Workflow json.RawMessage
	// Prompt is the raw compiled payload.
	Prompt json.RawMessage
}

// Empty reports whether neither document was found.
func (m Metadata) Empty() bool { return m.Workflow == nil && m.Prompt == nil }

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// Parse walks the chunk stream and collects the embedded documents from tEXt
// and iTXt chunks. Truncated streams yield whatever was found before the
// truncation; non-JSON values under the known keys are ignored.
func Parse(data []byte) (Metadata, error) {
	if !IsPNG(data) {
		return Metadata{}, ErrNotPNG
	}

	var meta Metadata
	offset := len(pngSignature)
	for offset+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunkType := string(data[offset+4 : offset+8])
		offset += 8

		if length < 0 || offset+length > len(data) {
			break
		}
		chunk := data[offset : offset+length]
		offset += length + 4 // data + CRC

		switch chunkType {
		case "tEXt":
			key, value, ok := bytes.Cut(chunk, []byte{0})
			if ok {
				meta.assign(string(key), value)
			}
		case "iTXt":
			// keyword \0, one-byte compression flag and method, then
			// language tag \0 translated keyword \0 text
			key, rest, ok := bytes.Cut(chunk, []byte{0})
			if !ok || len(rest) < 2 {
				continue
			}
			if rest[0] != 0 {
				// compressed text; not worth inflating for metadata
				continue
			}
			_, rest, ok = bytes.Cut(rest[2:], []byte{0})
			if !ok {
				continue
			}
			_, text, ok := bytes.Cut(rest, []byte{0})
			if !ok {
				continue
			}
			meta.assign(string(key), text)
		case "IEND":
			return meta, nil
		}
	}
	return meta, nil
}

func (m *Metadata) assign(key string, value []byte) {
	if !json.Valid(value) {
		return
	}
	switch key {
	case "workflow":
		if m.Workflow == nil {
			m.Workflow = append(json.RawMessage(nil), value...)
		}
	case "prompt":
		if m.Prompt == nil {
			m.Prompt = append(json.RawMessage(nil), value...)
		}
	}
}

// ParseFile reads a PNG from disk and extracts its metadata.
func ParseFile(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading %s: %w", path, err)
	}
	meta, err := Parse(data)
	if err != nil {
		return Metadata{}, fmt.Errorf("%s: %w", path, err)
	}
	return meta, nil
}

// IsPNGPath reports whether path names an existing .png file.
func IsPNGPath(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
