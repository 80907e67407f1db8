package state

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Snapshot is an immutable raster encoding of a drawing or an uploaded
// image. The zero value means "no input".
type Snapshot struct {
	mediaType string
	data      []byte
}

// NewSnapshot copies data into a new Snapshot.
func NewSnapshot(mediaType string, data []byte) Snapshot {
	return Snapshot{mediaType: mediaType, data: bytes.Clone(data)}
}

// IsZero reports whether the snapshot carries no image bytes.
func (s Snapshot) IsZero() bool { return len(s.data) == 0 }

func (s Snapshot) MediaType() string { return s.mediaType }

func (s Snapshot) Len() int { return len(s.data) }

// Bytes returns a copy of the encoded image.
func (s Snapshot) Bytes() []byte { return bytes.Clone(s.data) }

// Base64 returns the standard base64 encoding of the image bytes.
func (s Snapshot) Base64() string {
	return base64.StdEncoding.EncodeToString(s.data)
}

// DataURI renders the snapshot as a self-describing data: URI.
func (s Snapshot) DataURI() string {
	if s.IsZero() {
		return ""
	}
	mt := s.mediaType
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + s.Base64()
}

func (s Snapshot) MarshalText() ([]byte, error) {
	return []byte(s.DataURI()), nil
}

func (s *Snapshot) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = Snapshot{}
		return nil
	}
	parsed, err := ParseDataURI(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var errNotDataURI = errors.New("not a base64 data URI")

// ParseDataURI decodes "data:<type>;base64,<payload>". A bare base64 payload
// without the data: prefix is accepted as image/png.
func ParseDataURI(uri string) (Snapshot, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "data:") {
		data, err := base64.StdEncoding.DecodeString(uri)
		if err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot: %w", errNotDataURI)
		}
		return Snapshot{mediaType: "image/png", data: data}, nil
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", errNotDataURI)
	}
	mt := strings.TrimSuffix(header, ";base64")
	if mt != "" {
		parsed, _, err := mime.ParseMediaType(mt)
		if err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot media type: %w", err)
		}
		mt = parsed
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot payload: %w", err)
	}
	return Snapshot{mediaType: mt, data: data}, nil
}
