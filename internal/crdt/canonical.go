package crdt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// encodeOps writes ops as {"ops":[...]} in canonical form.
// ops must already be sorted and deduplicated.
func encodeOps(ops []Op) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"ops":[`)
	for i, op := range ops {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeOp(&buf, op); err != nil {
			return nil, fmt.Errorf("op %s/%d: %w", op.Origin, op.Seq, err)
		}
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

// writeOp emits one op with keys in lexical order.
func writeOp(buf *bytes.Buffer, op Op) error {
	buf.WriteString(`{"deleted":`)
	buf.WriteString(strconv.FormatBool(op.Deleted))

	buf.WriteString(`,"key":`)
	if err := writeString(buf, op.Key); err != nil {
		return err
	}

	buf.WriteString(`,"lamport":`)
	buf.WriteString(strconv.FormatUint(op.Lamport, 10))

	buf.WriteString(`,"origin":`)
	if err := writeString(buf, op.Origin); err != nil {
		return err
	}

	buf.WriteString(`,"seq":`)
	buf.WriteString(strconv.FormatUint(op.Seq, 10))

	buf.WriteString(`,"value":`)
	if err := writeString(buf, op.Value); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

// encodeVector writes a state vector as a JSON object with sorted keys.
func encodeVector(sv StateVector) ([]byte, error) {
	origins := make([]string, 0, len(sv))
	for origin := range sv {
		origins = append(origins, origin)
	}
	sort.Strings(origins)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, origin := range origins {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, origin); err != nil {
			return nil, fmt.Errorf("origin %q: %w", origin, err)
		}
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatUint(sv[origin], 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeString emits an NFC-normalised JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// json.Encoder appends a newline.
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}
