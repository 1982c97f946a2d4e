package noise

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/hens-workflow/internal/common"
)

func writeSkill(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSkillTableYAML(t *testing.T) {
	path := writeSkill(t, "skill.yaml", `
- channel: t2m
  lead_time: 48
  value: 0.5
- channel: z500
  lead_time: 48
  value: 0.1
`)
	table, err := LoadSkillTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	v, ok := table.Lookup("z500", 48)
	require.True(t, ok)
	assert.Equal(t, 0.1, v)
	_, ok = table.Lookup("z500", 24)
	assert.False(t, ok)
}

func TestLoadSkillTableJSONDocument(t *testing.T) {
	path := writeSkill(t, "skill.json", `{"records": [
  {"channel": "t2m", "lead_time": 24, "value": 0.3},
  {"channel": "t2m", "lead_time": 48, "value": 0.5}
  ]}`)
	table, err := LoadSkillTable(path)
	require.NoError(t, err)
	assert.Equal(t, []int{24, 48}, table.LeadTimes())
}

func TestLoadSkillTableCSV(t *testing.T) {
	path := writeSkill(t, "skill.csv", "channel, lead_time, value\nt2m, 48, 0.5\nu10m, 48, 0.2\n")
	table, err := LoadSkillTable(path)
	require.NoError(t, err)

	v, ok := table.Lookup("u10m", 48)
	require.True(t, ok)
	assert.Equal(t, 0.2, v)
}

func TestLoadSkillTableErrors(t *testing.T) {
	_, err := LoadSkillTable("")
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = LoadSkillTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadSkillTable(writeSkill(t, "skill.nc", "x"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = LoadSkillTable(writeSkill(t, "skill.csv", "channel,value\nt2m,0.5\n"))
	assert.ErrorContains(t, err, "lead_time")

	_, err = LoadSkillTable(writeSkill(t, "skill.csv", "channel,lead_time,value\nt2m,soon,0.5\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestLoadSkillTableListTypeErrorNamesTheField(t *testing.T) {
	path := writeSkill(t, "skill.yaml", `
- channel: t2m
  lead_time: soon
  value: 0.5
`)
	_, err := LoadSkillTable(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "soon")
	assert.NotContains(t, err.Error(), "!!seq")
}

func TestNewSkillTableRejectsBadRecords(t *testing.T) {
	_, err := NewSkillTable([]SkillRecord{{Channel: "", LeadTime: 48, Value: 1}})
	assert.Error(t, err)

	_, err = NewSkillTable([]SkillRecord{{Channel: "t2m", LeadTime: -6, Value: 1}})
	assert.Error(t, err)

	_, err = NewSkillTable([]SkillRecord{
		{Channel: "t2m", LeadTime: 48, Value: 1},
		{Channel: "t2m", LeadTime: 48, Value: 2},
	})
	assert.ErrorContains(t, err, "duplicate")
}
