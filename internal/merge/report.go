package merge

import (
	"bytes"
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Counts is a per-relation tally keyed by report key. It marshals in catalog
// order so reports are stable.
type Counts struct {
	keys   []string
	values map[string]int
}

// NewCounts returns zeroed counts for keys.
func NewCounts(keys []string) Counts {
	c := Counts{keys: append([]string(nil), keys...), values: make(map[string]int, len(keys))}
	for _, k := range keys {
		c.values[k] = 0
	}
	return c
}

// Add increments key by n. Unknown keys are appended.
func (c *Counts) Add(key string, n int) {
	if c.values == nil {
		c.values = make(map[string]int)
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] += n
}

// Get returns the count for key.
func (c Counts) Get(key string) int {
	return c.values[key]
}

// Keys returns the keys in order.
func (c Counts) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Total sums every count.
func (c Counts) Total() int {
	total := 0
	for _, v := range c.values {
		total += v
	}
	return total
}

// Map returns a copy as a plain map.
func (c Counts) Map() map[string]int {
	m := make(map[string]int, len(c.values))
	for k, v := range c.values {
		m[k] = v
	}
	return m
}

// MarshalJSON writes the counts as an object in key order.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(c.values[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping the document's key order.
func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = Counts{values: make(map[string]int)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var n int
		if err := dec.Decode(&n); err != nil {
			return err
		}
		c.Add(key, n)
	}
	_, err := dec.Token()
	return err
}

// MarshalYAML writes the counts as a mapping in key order.
func (c Counts) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range c.keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(c.values[k])},
		)
	}
	return node, nil
}

// Report describes a completed (or rehearsed) merge.
type Report struct {
	MergedIntoID      string   `json:"mergedIntoId" yaml:"mergedIntoId"`
	SourceID          string   `json:"sourceId" yaml:"sourceId"`
	TransferredCounts Counts   `json:"transferredCounts" yaml:"transferredCounts"`
	DiscardedCounts   Counts   `json:"discardedCounts" yaml:"discardedCounts"`
	ReconciledFields  []string `json:"reconciledFields" yaml:"reconciledFields"`
	DryRun            bool     `json:"dryRun" yaml:"dryRun"`

	// TargetBefore is the target's profile before reconciliation and
	// Reconciled holds the values copied from the source.
	TargetBefore map[string]*string `json:"-" yaml:"-"`
	Reconciled   map[string]string  `json:"-" yaml:"-"`
}

// TargetAfter returns the target's profile with the reconciled values applied.
func (r *Report) TargetAfter() map[string]*string {
	after := make(map[string]*string, len(r.TargetBefore))
	for k, v := range r.TargetBefore {
		after[k] = v
	}
	for k, v := range r.Reconciled {
		after[k] = &v
	}
	return after
}

func newReport(sourceUUID, targetUUID string, c Catalog) *Report {
	return &Report{
		MergedIntoID:      targetUUID,
		SourceID:          sourceUUID,
		TransferredCounts: NewCounts(c.ReportKeys()),
		DiscardedCounts:   NewCounts(c.ReportKeys()),
		ReconciledFields:  []string{},
	}
}

// eventPayload is the report as recorded in the event log.
func (r *Report) eventPayload() map[string]interface{} {
	return map[string]interface{}{
		"source_uuid":        r.SourceID,
		"transferred_counts": r.TransferredCounts.Map(),
		"discarded_counts":   r.DiscardedCounts.Map(),
		"reconciled_fields":  r.ReconciledFields,
	}
}
