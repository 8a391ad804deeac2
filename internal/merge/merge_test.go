package merge

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redditetl/internal/config"
	"redditetl/internal/csvout"
	"redditetl/internal/report"
	"redditetl/internal/schema"
)

func setup(t *testing.T) (*config.Config, *Merger) {
	t.Helper()
	cfg := config.ForRoot(t.TempDir())
	require.NoError(t, os.MkdirAll(cfg.ProcessedDir, 0o755))
	return cfg, New(cfg)
}

func writeTable(t *testing.T, path string, header []string, rows ...[]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w, err := csvout.NewWithHeader(f, header)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, w.WriteRow(r))
	}
	require.NoError(t, w.Flush())
}

func readTable(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func comment(id, link, parent string) []string {
	return []string{id, "u", "body, with comma", "1", "1700000000", "politics", link, parent}
}

func TestMerge_CommentsConcatenateAndNormalize(t *testing.T) {
	cfg, m := setup(t)
	writeTable(t, cfg.ProcessedPath("a.csv"), schema.CommentFields,
		comment("c1", "t3_abc123", "t3_abc123"),
		comment("c2", "t3_abc123", "t1_c1"),
	)
	writeTable(t, cfg.ProcessedPath("b.csv"), schema.CommentFields,
		comment("c3", "t3_zzz", "zzz"),
	)

	res := m.Merge(context.Background(), Pair{First: "a.csv", Second: "b.csv", Output: "all_comments.csv", Kind: schema.Comment})
	require.Equal(t, report.Completed, res.State, "%v", res.Err)
	assert.True(t, res.Normalized)
	assert.EqualValues(t, 2, res.RowsFirst)
	assert.EqualValues(t, 1, res.RowsSecond)
	assert.EqualValues(t, 3, res.Rows)
	assert.Equal(t, "COMPLETED(all_comments.csv)", res.String())

	recs := readTable(t, cfg.CombinedPath("all_comments.csv"))
	require.Len(t, recs, 4)
	assert.Equal(t, schema.CommentFields.Header(), recs[0])
	assert.Equal(t, comment("c1", "abc123", "abc123"), recs[1])
	assert.Equal(t, comment("c2", "abc123", "c1"), recs[2])
	assert.Equal(t, comment("c3", "zzz", "zzz"), recs[3])
}

func TestMerge_PostsAreNeverRewritten(t *testing.T) {
	cfg, m := setup(t)
	p1 := []string{"t3_p1", "t1_author", "t3_ title", "t1_ self", "5", "1", "politics", "2", "https://x/t3_", "/r/politics/t3_p1"}
	p2 := []string{"p2", "bob", "t", "", "0", "2", "Conservative", "0", "", ""}
	writeTable(t, cfg.ProcessedPath("a.csv"), schema.PostFields, p1)
	writeTable(t, cfg.ProcessedPath("b.csv"), schema.PostFields, p2)

	res := m.Merge(context.Background(), Pair{First: "a.csv", Second: "b.csv", Output: "all_posts.csv", Kind: schema.Post})
	require.Equal(t, report.Completed, res.State, "%v", res.Err)
	assert.False(t, res.Normalized)

	recs := readTable(t, cfg.CombinedPath("all_posts.csv"))
	assert.Equal(t, [][]string{schema.PostFields.Header(), p1, p2}, recs)
}

func TestMerge_OrderIsFirstThenSecond(t *testing.T) {
	cfg, m := setup(t)
	header := []string{"id", "n"}
	var a, b [][]string
	for i := 0; i < 50; i++ {
		a = append(a, []string{"a", strings.Repeat("x", i)})
		b = append(b, []string{"b", strings.Repeat("y", i)})
	}
	writeTable(t, cfg.ProcessedPath("a.csv"), header, a...)
	writeTable(t, cfg.ProcessedPath("b.csv"), header, b...)

	res := m.Merge(context.Background(), Pair{First: "a.csv", Second: "b.csv", Output: "ab.csv", Kind: schema.Post})
	require.Equal(t, report.Completed, res.State)

	recs := readTable(t, cfg.CombinedPath("ab.csv"))
	assert.Equal(t, append(append([][]string{header}, a...), b...), recs)
}

func TestMergeAll_MissingInputSkipsOnlyThatPair(t *testing.T) {
	cfg, m := setup(t)
	writeTable(t, cfg.ProcessedPath("pa.csv"), schema.PostFields)
	writeTable(t, cfg.ProcessedPath("pb.csv"), schema.PostFields,
		[]string{"p", "a", "t", "s", "1", "2", "r", "0", "u", "l"})
	writeTable(t, cfg.ProcessedPath("ca.csv"), schema.CommentFields)

	results := m.MergeAll(context.Background(), []Pair{
		{Name: "comments", First: "ca.csv", Second: "cb.csv", Output: "all_comments.csv", Kind: schema.Comment},
		{Name: "posts", First: "pa.csv", Second: "pb.csv", Output: "all_posts.csv", Kind: schema.Post},
	})
	require.Len(t, results, 2)

	assert.Equal(t, report.Skipped, results[0].State)
	assert.Equal(t, []string{cfg.ProcessedPath("cb.csv")}, results[0].Missing)
	_, err := os.Stat(cfg.CombinedPath("all_comments.csv"))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, report.Completed, results[1].State)
	assert.EqualValues(t, 1, results[1].Rows)
	assert.False(t, Failed(results))

	sum := Summary(results)
	assert.Contains(t, sum, "SKIPPED(comments)")
	assert.Contains(t, sum, "COMPLETED(posts)")
	assert.Contains(t, sum, "1 completed, 1 skipped, 0 failed")
}

func TestMerge_BothMissing(t *testing.T) {
	cfg, m := setup(t)
	res := m.Merge(context.Background(), Pair{First: "x.csv", Second: "y.csv", Output: "xy.csv", Kind: schema.Post})
	assert.Equal(t, report.Skipped, res.State)
	assert.Len(t, res.Missing, 2)
	_, err := os.Stat(cfg.CombinedDir)
	assert.True(t, os.IsNotExist(err), "skipped merges create nothing")
}

func TestMerge_SchemaMismatch(t *testing.T) {
	cfg, m := setup(t)
	writeTable(t, cfg.ProcessedPath("a.csv"), schema.CommentFields)
	writeTable(t, cfg.ProcessedPath("b.csv"), schema.PostFields)

	res := m.Merge(context.Background(), Pair{First: "a.csv", Second: "b.csv", Output: "bad.csv", Kind: schema.Comment})
	assert.Equal(t, report.Failed, res.State)
	assert.True(t, errors.Is(res.Err, ErrSchemaMismatch))
	_, err := os.Stat(cfg.CombinedPath("bad.csv"))
	assert.True(t, os.IsNotExist(err))
	assert.True(t, Failed([]Result{res}))
}

func TestMerge_CommentKindNeedsIDColumns(t *testing.T) {
	cfg, m := setup(t)
	writeTable(t, cfg.ProcessedPath("a.csv"), []string{"id", "body"}, []string{"1", "x"})
	writeTable(t, cfg.ProcessedPath("b.csv"), []string{"id", "body"})

	res := m.Merge(context.Background(), Pair{First: "a.csv", Second: "b.csv", Output: "o.csv", Kind: schema.Comment})
	assert.Equal(t, report.Failed, res.State)
	assert.Contains(t, res.Err.Error(), "link_id")
}

func TestMerge_EmptyInputFile(t *testing.T) {
	cfg, m := setup(t)
	require.NoError(t, os.WriteFile(cfg.ProcessedPath("a.csv"), nil, 0o644))
	writeTable(t, cfg.ProcessedPath("b.csv"), schema.PostFields)

	res := m.Merge(context.Background(), Pair{First: "a.csv", Second: "b.csv", Output: "o.csv", Kind: schema.Post})
	assert.Equal(t, report.Failed, res.State)
	assert.Contains(t, res.Err.Error(), "empty")
}

func TestMerge_CorruptRowFails(t *testing.T) {
	cfg, m := setup(t)
	require.NoError(t, os.WriteFile(cfg.ProcessedPath("a.csv"), []byte("id,n\n1,2,3\n"), 0o644))
	writeTable(t, cfg.ProcessedPath("b.csv"), []string{"id", "n"})

	res := m.Merge(context.Background(), Pair{First: "a.csv", Second: "b.csv", Output: "o.csv", Kind: schema.Post})
	assert.Equal(t, report.Failed, res.State)
	_, err := os.Stat(cfg.CombinedPath("o.csv"))
	assert.True(t, os.IsNotExist(err))
}
