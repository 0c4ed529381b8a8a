package formatting

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidDataURI reports a value that is not a base64 data URI.
var ErrInvalidDataURI = errors.New("invalid data uri")

// DataURI is a decoded "data:<type>;base64,<payload>" value.
type DataURI struct {
	ContentType string
	Data        []byte
}

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// Extension returns a file extension for the content type, "bin" if unknown.
func (d DataURI) Extension() string {
	if ext, ok := extensions[d.ContentType]; ok {
		return ext
	}
	return "bin"
}

// DecodeDataURI decodes a base64 data URI.
func DecodeDataURI(s string) (DataURI, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return DataURI{}, ErrInvalidDataURI
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, ErrInvalidDataURI
	}

	contentType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return DataURI{}, ErrInvalidDataURI
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURI{}, errors.Join(ErrInvalidDataURI, err)
	}

	return DataURI{ContentType: contentType, Data: data}, nil
}
