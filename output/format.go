package output

import (
	"mime"
	"strings"
)

// Format is a serialization of query results.
type Format uint8

const (
	// NDJSON writes one JSON object per row. It is the default format.
	NDJSON Format = iota
	// JSON writes {"queryResult":[...]}.
	JSON
	// Arrow writes an Apache Arrow IPC stream.
	Arrow
)

const (
	ContentTypeNDJSON = "application/x-ndjson"
	ContentTypeJSON   = "application/json"
	ContentTypeArrow  = "application/vnd.apache.arrow.stream"
)

// ContentType returns the media type of the format.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return ContentTypeJSON
	case Arrow:
		return ContentTypeArrow
	}
	return ContentTypeNDJSON
}

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case Arrow:
		return "arrow"
	}
	return "ndjson"
}

// Negotiate picks the format for an Accept header. The first supported
// media type wins; wildcards, an empty header and unsupported types fall
// back to NDJSON.
func Negotiate(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case ContentTypeNDJSON:
			return NDJSON
		case ContentTypeJSON:
			return JSON
		case ContentTypeArrow:
			return Arrow
		}
	}
	return NDJSON
}
