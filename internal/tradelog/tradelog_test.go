package tradelog

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossvenue/crossarb/pkg/types"
)

func entry(id string) Entry {
	return Entry{
		Time:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		OpportunityID: id,
		Venue:         types.VenueOpinion,
		TokenID:       "tok-1",
		Side:          types.SideBuy,
		OrderQty:      101.5,
		LimitPrice:    0.42,
		FilledQty:     100,
		AvgFillPrice:  0.419,
		Fee:           0.5,
	}
}

func readLines(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestLogLegAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	l, err := Open(path, 1<<20, 3)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.LogLeg(entry("opp-1")))
	require.NoError(t, l.LogLeg(entry("opp-2")))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "opp-1", lines[0].OpportunityID)
	assert.Equal(t, 0.419, lines[1].AvgFillPrice)
}

func TestLogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	l, err := Open(path, 1<<20, 3)
	require.NoError(t, err)
	require.NoError(t, l.LogLeg(entry("opp-1")))
	require.NoError(t, l.Close())

	l2, err := Open(path, 1<<20, 3)
	require.NoError(t, err)
	defer l2.Close()
	require.NoError(t, l2.LogLeg(entry("opp-2")))

	assert.Len(t, readLines(t, path), 2, "append, not truncate")
}

func TestLogRotatesAtSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	l, err := Open(path, 300, 2)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.LogLeg(entry("opp")))
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file exists")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(300))
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "keep limit enforced")
}
