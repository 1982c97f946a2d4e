package noise

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/hens-workflow/internal/common"
)

var validate = validator.New()

// SkillRecord is one row of a skill file: the score of a channel at a lead time.
type SkillRecord struct {
	Channel  string  `yaml:"channel" json:"channel" validate:"required"`
	LeadTime int     `yaml:"lead_time" json:"lead_time" validate:"gte=0"`
	Value    float64 `yaml:"value" json:"value"`
}

type skillKey struct {
	channel  string
	leadTime int
}

// SkillTable maps (channel, lead time) to a skill score such as RMSE. It is
// immutable once built.
type SkillTable struct {
	values map[skillKey]float64
}

// NewSkillTable builds a table from records, rejecting invalid or duplicate rows.
func NewSkillTable(records []SkillRecord) (*SkillTable, error) {
	t := &SkillTable{values: make(map[skillKey]float64, len(records))}
	for i, r := range records {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("skill record %d: %w", i, err)
		}
		k := skillKey{channel: r.Channel, leadTime: r.LeadTime}
		if _, dup := t.values[k]; dup {
			return nil, fmt.Errorf("skill record %d: duplicate entry for %s at %dh", i, r.Channel, r.LeadTime)
		}
		t.values[k] = r.Value
	}
	return t, nil
}

// Lookup returns the score of channel at leadTime hours.
func (t *SkillTable) Lookup(channel string, leadTime int) (float64, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.values[skillKey{channel: channel, leadTime: leadTime}]
	return v, ok
}

// Len returns the number of entries.
func (t *SkillTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.values)
}

// LeadTimes returns the distinct lead times in ascending order.
func (t *SkillTable) LeadTimes() []int {
	seen := map[int]struct{}{}
	if t != nil {
		for k := range t.values {
			seen[k.leadTime] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for lt := range seen {
		out = append(out, lt)
	}
	sort.Ints(out)
	return out
}

// LoadSkillTable reads a skill file. YAML and JSON files hold a list of
// records (or a {records: [...]} document); CSV files need a
// channel,lead_time,value header.
func LoadSkillTable(path string) (*SkillTable, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no skill file path provided", common.ErrConfiguration)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open skill file: %w", err)
	}
	defer f.Close()

	var records []SkillRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = decodeCSV(f)
	case ".yaml", ".yml", ".json":
		records, err = decodeYAML(f)
	default:
		return nil, fmt.Errorf("unsupported skill file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode skill file %s: %w", path, err)
	}
	return NewSkillTable(records)
}

// decodeYAML accepts either a list of records or a document with a records key.
func decodeYAML(r io.Reader) ([]SkillRecord, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	var records []SkillRecord
	if len(root.Content) == 1 && root.Content[0].Kind == yaml.SequenceNode {
		if err := root.Content[0].Decode(&records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var doc struct {
		Records []SkillRecord `yaml:"records"`
	}
	if err := root.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Records, nil
}

func decodeCSV(r io.Reader) ([]SkillRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{"channel", "lead_time", "value"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing %q column", name)
		}
	}

	var records []SkillRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		lt, err := strconv.Atoi(strings.TrimSpace(row[col["lead_time"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid lead_time: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col["value"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value: %w", line, err)
		}
		records = append(records, SkillRecord{
			Channel:  strings.TrimSpace(row[col["channel"]]),
			LeadTime: lt,
			Value:    v,
		})
	}
	return records, nil
}
