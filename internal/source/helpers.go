package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// fdsnTime is the timestamp layout accepted by the FDSN event service.
const fdsnTime = "2006-01-02T15:04:05"

func formatFDSN(t time.Time) string {
	return t.UTC().Format(fdsnTime)
}

// ParseTypes splits a feature's comma-delimited product list
// (",origin,shakemap,dyfi,") into its tags.
func ParseTypes(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MatchProducts intersects the wanted product types with a feature's tags.
// The result follows the order of wanted and holds no duplicates.
func MatchProducts(wanted, available []string) []string {
	have := make(map[string]struct{}, len(available))
	for _, a := range available {
		have[a] = struct{}{}
	}
	var out []string
	used := make(map[string]struct{}, len(wanted))
	for _, w := range wanted {
		if _, ok := have[w]; !ok {
			continue
		}
		if _, dup := used[w]; dup {
			continue
		}
		used[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// propertyMap decodes a JSON object and keeps its key order, so flattened
// columns appear in document order.
type propertyMap struct {
	keys []string
	vals map[string]any
}

func (p *propertyMap) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("product properties: expected object, got %v", tok)
	}
	p.vals = make(map[string]any)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("product properties: bad key %v", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("product properties %q: %w", key, err)
		}
		if _, dup := p.vals[key]; !dup {
			p.keys = append(p.keys, key)
		}
		p.vals[key] = v
	}
	_, err = dec.Token()
	return err
}
