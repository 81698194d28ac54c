package chunk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one row of an uploaded dataset: column names paired with their
// rendered values, in document order. Ordering matters because the rendered
// text is what gets embedded, and re-ingesting the same payload must produce
// byte-identical chunks.
type Record struct {
	Keys   []string
	Values []string
}

// Render formats the record with an ordinal header and one "key: value" line
// per column.
func (r Record) Render(ordinal int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Record %d:\n", ordinal)
	for i, k := range r.Keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(r.Values[i])
		if i < len(r.Keys)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Split converts a raw payload into text chunks of at most maxSize bytes.
// A JSON array of objects is rendered record by record and packed greedily;
// anything else is treated as plain text and packed paragraph by paragraph.
// A single record or paragraph whose rendering alone exceeds maxSize becomes
// its own chunk, uncut. The output is deterministic for identical input.
func Split(payload string, maxSize int) (chunks []string) {
	defer func() {
		if r := recover(); r != nil {
			// Degraded mode: never fail the whole ingestion over a
			// malformed payload. One truncated chunk beats zero.
			raw := payload
			if len(raw) > maxSize {
				raw = raw[:maxSize]
			}
			chunks = []string{raw}
		}
	}()

	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil
	}

	if records, ok := parseRecords(trimmed); ok {
		rendered := make([]string, len(records))
		for i, rec := range records {
			rendered[i] = rec.Render(i + 1)
		}
		return pack(rendered, maxSize)
	}

	return pack(paragraphs(trimmed), maxSize)
}

// pack greedily concatenates pieces separated by blank lines, starting a new
// chunk when appending the next piece would push the current one past maxSize.
func pack(pieces []string, maxSize int) []string {
	var chunks []string
	var current strings.Builder

	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		sep := 0
		if current.Len() > 0 {
			sep = 2 // "\n\n"
		}
		if current.Len() > 0 && current.Len()+sep+len(piece) > maxSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(piece)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseRecords decodes a JSON array of flat objects while preserving each
// object's key order. encoding/json map decoding would scramble the columns,
// so this walks the token stream instead. Returns ok=false for payloads that
// are not a JSON array of objects.
func parseRecords(payload string) ([]Record, bool) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, false
	}

	var records []Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil, false
		}

		var rec Record
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, false
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, false
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, false
			}
			rec.Keys = append(rec.Keys, key)
			rec.Values = append(rec.Values, val)
		}
		if _, err := dec.Token(); err != nil { // consume '}'
			return nil, false
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return nil, false
	}
	return records, true
}

// decodeValue renders the next JSON value as text. Scalars are rendered
// plainly; nested objects and arrays keep their compact JSON form.
func decodeValue(dec *json.Decoder) (string, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", err
	}

	switch {
	case len(raw) == 0:
		return "", nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case string(raw) == "null":
		return "", nil
	case raw[0] == '{' || raw[0] == '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		// Numbers and booleans read fine as-is.
		return string(raw), nil
	}
}
