package kpi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ranking is an ordered activity frequency list. It encodes as a JSON object
// whose keys appear in ranking order.
type Ranking []ActivityCount

// MarshalJSON implements json.Marshaler.
func (r Ranking) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ac := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ac.Activity)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(fmt.Sprintf(":%d", ac.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (r *Ranking) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("ranking: expected object, got %v", tok)
	}

	var out Ranking
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("ranking: expected string key, got %v", keyTok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("ranking: count for %q: %w", key, err)
		}
		out = append(out, ActivityCount{Activity: key, Count: count})
	}
	*r = out
	return nil
}
