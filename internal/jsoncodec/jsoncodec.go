// Package jsoncodec decodes responses from a remote service that breaks two
// JSON rules: identifiers may exceed 53-bit integer precision, and string
// values may contain raw control characters (literal newlines and tabs are
// common in user-supplied department and agent names). Decoding goes through
// a sanitize pass that escapes the offending bytes, and numbers are kept as
// json.Number so no precision is lost.
package jsoncodec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Sanitize escapes raw control characters (0x00-0x1F) found inside JSON
// string literals so the document becomes parseable. Bytes outside string
// literals are left untouched.
func Sanitize(data []byte) []byte {
	var (
		out      bytes.Buffer
		inString bool
		escaped  bool
	)
	out.Grow(len(data))

	for _, b := range data {
		switch {
		case escaped:
			escaped = false
			out.WriteByte(b)
		case inString && b == '\\':
			escaped = true
			out.WriteByte(b)
		case b == '"':
			inString = !inString
			out.WriteByte(b)
		case inString && b < 0x20:
			fmt.Fprintf(&out, `\u%04x`, b)
		default:
			out.WriteByte(b)
		}
	}
	return out.Bytes()
}

// Parse decodes sanitized JSON into a dynamic value. Numbers are returned as
// json.Number, preserving integer precision beyond 53 bits.
func Parse(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(Sanitize(data)))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Unmarshal decodes sanitized JSON into v. Interface-typed fields receive
// json.Number for numeric values.
func Unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(Sanitize(data)))
	dec.UseNumber()
	return dec.Decode(v)
}
