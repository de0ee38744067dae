package evaluation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/partition"
	"github.com/utndatasystems/string-fingerprints/model"
)

func mappingOf(t *testing.T, p partition.Partition) partition.Mapping {
	t.Helper()
	m, err := p.Mapping()
	require.NoError(t, err)
	return m
}

var (
	onePerLetter = partition.Partition{[]byte("a"), []byte("b"), []byte("c")}
	allInOne     = partition.Partition{[]byte("abc")}
	words        = []string{"ab", "ac", "bc"}
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		partition partition.Partition
		want      model.FPRReport
	}{
		{"one bin per letter", onePerLetter, model.NewFPRReport(0, 1, 1)},
		{"single bin", allInOne, model.NewFPRReport(1, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Score(words, []string{"a"}, mappingOf(t, tt.partition))
			require.NoError(t, err)
			assert.Equal(t, tt.want, report)
			assert.Equal(t, report.Negatives, report.FalsePositives+report.TrueNegatives)
		})
	}

	report, err := Score(words, []string{"a"}, mappingOf(t, allInOne))
	require.NoError(t, err)
	assert.Equal(t, model.Ratio(1), report.Ratio)
}

func TestScoreSumsBeforeDividing(t *testing.T) {
	// "a" sees 3 false positives among 4 negatives and "c" none among 3: the
	// aggregate is 3/7, not the mean of 3/4 and 0.
	ws := []string{"ab", "bc", "b", "bb", "cc"}
	m := mappingOf(t, partition.Partition{[]byte("ab"), []byte("c")})
	report, err := Score(ws, []string{"a", "c"}, m)
	require.NoError(t, err)
	assert.Equal(t, 3, report.FalsePositives)
	assert.Equal(t, 4, report.TrueNegatives)
	assert.Equal(t, 7, report.Negatives)
	assert.InDelta(t, 3.0/7.0, float64(report.Ratio), 1e-12)
}

func TestScoreEmptyNegatives(t *testing.T) {
	report, err := Score([]string{"ab", "ba"}, []string{"a"}, mappingOf(t, allInOne))
	require.NoError(t, err)
	assert.True(t, report.Ratio.Inf())

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"false_positive_count":0,"true_negative_count":0,"negative_count":0,"ratio":"+Inf"}`, string(data))

	var back model.FPRReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Ratio.Inf())
}

func TestScoreUnmappedByte(t *testing.T) {
	_, err := Score([]string{"abz"}, []string{"a"}, mappingOf(t, onePerLetter))
	assert.ErrorIs(t, err, errors.ErrUnmappedByte)
	assert.ErrorContains(t, err, "0x7a")
}

func TestEvaluateCheckpointSkipsMissingPartition(t *testing.T) {
	entry, err := EvaluateCheckpoint(model.Checkpoint{Index: 4, ElapsedSeconds: 1}, 3, Data{}, Splits{Train: true})
	require.NoError(t, err)
	assert.True(t, entry.Skipped)
	assert.Equal(t, 4, entry.Index)
	assert.Equal(t, 3.0, entry.Timestamp)
	assert.Empty(t, entry.Reports)
}

func testData() Data {
	return Data{
		TrainWords:    words,
		TrainPatterns: []string{"a"},
		AllWords:      []string{"ab", "ac", "bc", "cb", "ca"},
		TestPatterns:  []string{"b"},
		TableWords:    []string{"abc", "cc"},
	}
}

func TestEvaluateCheckpointSplits(t *testing.T) {
	cp := model.Checkpoint{Index: 0, Partition: allInOne, Objective: 1}
	entry, err := EvaluateCheckpoint(cp, 0.5, testData(), Splits{Train: true, Validation: true, Test: true, Table: true})
	require.NoError(t, err)

	assert.Equal(t, model.NewFPRReport(1, 0, 1), entry.Reports[model.SplitTrain])
	assert.Equal(t, model.NewFPRReport(2, 0, 2), entry.Reports[model.SplitValidation])
	assert.Equal(t, model.NewFPRReport(2, 0, 2), entry.Reports[model.SplitTest])
	assert.Equal(t, model.NewFPRReport(1, 0, 1), entry.Reports[model.SplitTableValidation])
	assert.Equal(t, model.NewFPRReport(1, 0, 1), entry.Reports[model.SplitTableTest])

	entry, err = EvaluateCheckpoint(cp, 0.5, testData(), Splits{Table: true})
	require.NoError(t, err)
	assert.Len(t, entry.Reports, 1, "table test needs held-out patterns enabled")
}

func TestEvaluateTrail(t *testing.T) {
	trail := model.Trail{
		OffsetSeconds: 1,
		Checkpoints: []model.Checkpoint{
			{Index: 0, ElapsedSeconds: 0, Partition: allInOne, Objective: 1},
			{Index: 1, ElapsedSeconds: 1},
			{Index: 2, ElapsedSeconds: 2, Partition: onePerLetter, Objective: 0},
			{Index: 3, ElapsedSeconds: 2.5, Partition: onePerLetter, Objective: 0},
			{Index: 4, ElapsedSeconds: 10, Partition: onePerLetter, Objective: 0},
		},
	}

	for _, workers := range []int{1, 4} {
		h := NewHarness(workers, nil)
		entries, err := h.EvaluateTrail(context.Background(), trail, testData(), Options{
			Splits:       Splits{Train: true, Validation: true, Test: true},
			Budget:       5 * time.Second,
			BaselineBins: 3,
		})
		require.NoError(t, err)

		require.Len(t, entries, 5, "checkpoint 4 is past the budget")
		for i, want := range []int{model.BaselineIndex, 0, 1, 2, 3} {
			assert.Equal(t, want, entries[i].Index)
		}
		assert.True(t, entries[2].Skipped)
		assert.Equal(t, 2.0, entries[2].Timestamp)
		assert.Equal(t, entries[3].Reports, entries[4].Reports)
		assert.Equal(t, model.NewFPRReport(0, 1, 1), entries[3].Reports[model.SplitTrain])
		assert.Equal(t, model.NewFPRReport(1, 0, 1), entries[1].Reports[model.SplitTrain])
		assert.Len(t, entries[0].Reports, 3)
	}
}

func TestEvaluateTrailFailsOnUnmappedByte(t *testing.T) {
	data := testData()
	data.TestPatterns = []string{"z"}
	trail := model.Trail{Checkpoints: []model.Checkpoint{{Index: 0, Partition: onePerLetter}}}

	_, err := NewHarness(2, nil).EvaluateTrail(context.Background(), trail, data, Options{Splits: Splits{Train: true, Test: true}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnmappedByte)
	assert.ErrorContains(t, err, "corpus 'test'")
	assert.ErrorContains(t, err, "partition 'checkpoint 0'")
}

func TestEvaluateTrailCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trail := model.Trail{Checkpoints: []model.Checkpoint{{Index: 0, Partition: onePerLetter}}}
	_, err := NewHarness(1, nil).EvaluateTrail(ctx, trail, testData(), Options{Splits: Splits{Train: true}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoKeysOnWholeMapping(t *testing.T) {
	c := newMemo()
	// Every mapping hashes alike, so only the full mapping tells them apart.
	c.hash = func(partition.Mapping) uint64 { return 7 }
	train := corpus{split: model.SplitTrain, words: words, patterns: []string{"a"}}

	coarse, err := c.score(train, mappingOf(t, allInOne))
	require.NoError(t, err)
	fine, err := c.score(train, mappingOf(t, onePerLetter))
	require.NoError(t, err)

	assert.Equal(t, model.NewFPRReport(1, 0, 1), coarse)
	assert.Equal(t, model.NewFPRReport(0, 1, 1), fine)
	assert.Equal(t, 0, c.hits)

	again, err := c.score(train, mappingOf(t, onePerLetter))
	require.NoError(t, err)
	assert.Equal(t, fine, again)
	assert.Equal(t, 1, c.hits)
	assert.Len(t, c.reports, 2)
}
