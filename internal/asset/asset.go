// Package asset implements AssetRequest's external-object file handling:
// reading/writing files under a configured root with optional
// deflate/gzip compression negotiation, SHA-256 digest computation, and
// path-traversal rejection (spec §4.7 AssetRequest, §C). Grounded on the
// teacher's dialout/OS-file-handling style (plain os/io calls, no
// abstraction layer) and on original_source's AssetRequest for the
// compression-negotiation and digest contract this supplements.
package asset

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Encoding names the compression applied to a payload on the wire.
type Encoding string

const (
	EncodingNone    Encoding = "identity"
	EncodingDeflate Encoding = "deflate"
	EncodingGzip    Encoding = "gzip"
)

// Metadata describes a stored file, independent of its encoding.
type Metadata struct {
	Filename string
	Size     int64
}

// Payload is the ExternalObjectPayload body (spec §4.7 AssetRequest GET):
// cachable is always true for a successful read of an immutable asset.
type Payload struct {
	Cachable bool
	Encoding Encoding
	Metadata Metadata
	Digest   string
	Payload  []byte
}

// Store roots every asset operation under Root; fqoids are joined onto it
// after path-traversal validation.
type Store struct {
	Root string
}

func New(root string) *Store { return &Store{Root: root} }

// resolve turns an oid-shaped key into an absolute path under s.Root,
// rejecting any ".." segment and any path that would escape the root
// (spec §4.7: "path traversal outside the root is rejected").
func (s *Store) resolve(fqoid string) (string, error) {
	for _, seg := range strings.Split(fqoid, "/") {
		if seg == ".." {
			return "", status.Errorf(codes.InvalidArgument, "asset path escapes root: %s", fqoid)
		}
	}
	clean := filepath.Clean("/" + strings.TrimPrefix(fqoid, "/"))
	full := filepath.Join(s.Root, clean)
	rootAbs, err := filepath.Abs(s.Root)
	if err != nil {
		return "", status.Errorf(codes.Internal, "resolving asset root: %v", err)
	}
	fullAbs, err := filepath.Abs(full)
	if err != nil {
		return "", status.Errorf(codes.Internal, "resolving asset path: %v", err)
	}
	if fullAbs != rootAbs && !strings.HasPrefix(fullAbs, rootAbs+string(filepath.Separator)) {
		return "", status.Errorf(codes.InvalidArgument, "asset path escapes root: %s", fqoid)
	}
	return fullAbs, nil
}

// Get reads fqoid, compressing the payload into wantEncoding if it isn't
// EncodingNone (spec §4.7 AssetRequest GET).
func (s *Store) Get(fqoid string, wantEncoding Encoding) (*Payload, error) {
	path, err := s.resolve(fqoid)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.Errorf(codes.NotFound, "no asset at %s", fqoid)
		}
		return nil, status.Errorf(codes.Internal, "reading asset %s: %v", fqoid, err)
	}
	out := raw
	if wantEncoding != EncodingNone && wantEncoding != "" {
		compressed, err := compress(raw, wantEncoding)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "compressing asset %s: %v", fqoid, err)
		}
		out = compressed
	}
	sum := sha256.Sum256(raw)
	return &Payload{
		Cachable: true,
		Encoding: orDefault(wantEncoding),
		Metadata: Metadata{Filename: filepath.Base(path), Size: int64(len(raw))},
		Digest:   hex.EncodeToString(sum[:]),
		Payload:  out,
	}, nil
}

// Create implements AssetRequest POST: fails ALREADY_EXISTS if present.
func (s *Store) Create(fqoid string, body []byte, bodyEncoding Encoding) error {
	path, err := s.resolve(fqoid)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return status.Errorf(codes.AlreadyExists, "asset already exists: %s", fqoid)
	}
	return s.writeDecoded(path, body, bodyEncoding)
}

// Replace implements AssetRequest PUT: fails NOT_FOUND if absent.
func (s *Store) Replace(fqoid string, body []byte, bodyEncoding Encoding) error {
	path, err := s.resolve(fqoid)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return status.Errorf(codes.NotFound, "no asset at %s", fqoid)
	}
	return s.writeDecoded(path, body, bodyEncoding)
}

// Delete implements AssetRequest DELETE: fails NOT_FOUND if absent.
func (s *Store) Delete(fqoid string) error {
	path, err := s.resolve(fqoid)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return status.Errorf(codes.NotFound, "no asset at %s", fqoid)
		}
		return status.Errorf(codes.Internal, "deleting asset %s: %v", fqoid, err)
	}
	return nil
}

// writeDecoded atomically writes body (after decompressing per
// bodyEncoding) to path, via a temp file + rename so a crashed or
// concurrent reader never observes a partial file.
func (s *Store) writeDecoded(path string, body []byte, bodyEncoding Encoding) error {
	decoded := body
	if bodyEncoding != EncodingNone && bodyEncoding != "" {
		d, err := decompress(body, bodyEncoding)
		if err != nil {
			return status.Errorf(codes.Internal, "decompressing asset body: %v", err)
		}
		decoded = d
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return status.Errorf(codes.Internal, "creating asset directory: %v", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".asset-*")
	if err != nil {
		return status.Errorf(codes.Internal, "creating temp asset file: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(decoded); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return status.Errorf(codes.Internal, "writing asset: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return status.Errorf(codes.Internal, "closing temp asset file: %v", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return status.Errorf(codes.Internal, "installing asset: %v", err)
	}
	return nil
}

func orDefault(e Encoding) Encoding {
	if e == "" {
		return EncodingNone
	}
	return e
}

func compress(raw []byte, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	switch enc {
	case EncodingDeflate:
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case EncodingGzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
	return buf.Bytes(), nil
}

func decompress(body []byte, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingDeflate:
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return io.ReadAll(r)
	case EncodingGzip:
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
}
