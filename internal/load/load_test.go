package load

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redditetl/internal/csvin"
	"redditetl/internal/schema"
)

func TestBuildInsert(t *testing.T) {
	q := BuildInsert("reddit_posts", []string{"id", "title"}, 3)
	assert.Equal(t, "INSERT INTO `reddit_posts` (`id`,`title`) VALUES (?,?),(?,?),(?,?)", q)

	assert.Equal(t, "", BuildInsert("t", []string{"a"}, 0))
	assert.Equal(t, "", BuildInsert("t", nil, 2))
	assert.Equal(t, "INSERT INTO `we``ird` (`a`) VALUES (?)", BuildInsert("we`ird", []string{"a"}, 1))
}

func TestTableFor(t *testing.T) {
	assert.Equal(t, CommentsTable, TableFor(schema.Comment))
	assert.Equal(t, PostsTable, TableFor(schema.Post))
	assert.Equal(t, "", TableFor(schema.Unknown))
}

type call struct {
	query string
	args  int
}

type fakeExec struct{ calls []call }

func (f *fakeExec) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, call{query: q, args: len(args)})
	return nil, nil
}

func TestInsertAll_Chunks(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,title\n")
	for i := 0; i < 5; i++ {
		b.WriteString("p,t\n")
	}
	r := csvin.New(strings.NewReader(b.String()), csvin.Options{})
	_, err := r.Header()
	require.NoError(t, err)

	ex := &fakeExec{}
	n, err := insertAll(context.Background(), ex, r, "reddit_posts", []string{"id", "title"}, 2, "mem")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	require.Len(t, ex.calls, 3)
	assert.Equal(t, 4, ex.calls[0].args)
	assert.Equal(t, 4, ex.calls[1].args)
	assert.Equal(t, 2, ex.calls[2].args)
	assert.Equal(t, BuildInsert("reddit_posts", []string{"id", "title"}, 1), ex.calls[2].query)
}

func TestInsertAll_BadRow(t *testing.T) {
	r := csvin.New(strings.NewReader("id,title\na,b\nc\n"), csvin.Options{})
	_, err := r.Header()
	require.NoError(t, err)
	_, err = insertAll(context.Background(), &fakeExec{}, r, "t", []string{"id", "title"}, 10, "mem")
	assert.Error(t, err)
}

func TestChunkSize(t *testing.T) {
	assert.Equal(t, 2000, chunkSize(0, 10))
	assert.Equal(t, 500, chunkSize(500, 10))
	assert.Equal(t, 6553, chunkSize(7000, len(schema.PostFields)))
	assert.Equal(t, 8191, chunkSize(100000, len(schema.CommentFields)))
	assert.Equal(t, 1, chunkSize(5, 70000))
}

func TestInsertAll_CapsPlaceholders(t *testing.T) {
	cols := schema.PostFields.Header()
	var b strings.Builder
	b.WriteString(strings.Join(cols, ",") + "\n")
	for i := 0; i < 7000; i++ {
		b.WriteString("p,a,t,s,1,2,r,0,u,l\n")
	}
	r := csvin.New(strings.NewReader(b.String()), csvin.Options{})
	_, err := r.Header()
	require.NoError(t, err)

	ex := &fakeExec{}
	n, err := insertAll(context.Background(), ex, r, PostsTable, cols, 7000, "mem")
	require.NoError(t, err)
	assert.EqualValues(t, 7000, n)
	require.Len(t, ex.calls, 2)
	for _, c := range ex.calls {
		assert.LessOrEqual(t, c.args, maxPlaceholders)
	}
	assert.Equal(t, 65530, ex.calls[0].args)
	assert.Equal(t, 4470, ex.calls[1].args)
}
