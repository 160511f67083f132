package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Line is the stored unit for one product. UnitPrice is the price captured
// when the product was first added, kept as a fixed two-digit decimal string.
type Line struct {
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// Lines maps product id to its line and remembers insertion order, both in
// memory and in the serialized JSON object.
type Lines struct {
	keys  []string
	items map[string]*Line
}

func newLines() *Lines {
	return &Lines{items: make(map[string]*Line)}
}

func (l *Lines) Len() int {
	return len(l.keys)
}

func (l *Lines) Get(productID string) (*Line, bool) {
	line, ok := l.items[productID]
	return line, ok
}

// Keys returns product ids in insertion order.
func (l *Lines) Keys() []string {
	out := make([]string, len(l.keys))
	copy(out, l.keys)
	return out
}

func (l *Lines) put(productID string, line *Line) {
	if _, ok := l.items[productID]; !ok {
		l.keys = append(l.keys, productID)
	}
	l.items[productID] = line
}

func (l *Lines) remove(productID string) bool {
	if _, ok := l.items[productID]; !ok {
		return false
	}
	delete(l.items, productID)
	for i, k := range l.keys {
		if k == productID {
			l.keys = append(l.keys[:i], l.keys[i+1:]...)
			break
		}
	}
	return true
}

func (l *Lines) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range l.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(l.items[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (l *Lines) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("cart lines: expected object, got %v", tok)
	}

	fresh := newLines()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("cart lines: unexpected key %v", tok)
		}
		var line Line
		if err := dec.Decode(&line); err != nil {
			return fmt.Errorf("cart lines: decode %q: %w", key, err)
		}
		fresh.put(key, &line)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*l = *fresh
	return nil
}
