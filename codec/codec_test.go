package codec_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/slackmgr/s3ingest/codec"
	"github.com/slackmgr/s3ingest/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	records []processor.Record
}

func (c *collector) emit(r processor.Record) error {
	c.records = append(c.records, r)
	return nil
}

func (c *collector) messages() []string {
	out := make([]string, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Message)
	}
	return out
}

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "line", "plain", "json", "json_lines"} {
		f, err := codec.Lookup(name, codec.Config{})
		require.NoError(t, err, name)
		assert.NotNil(t, f(), name)
	}

	_, err := codec.Lookup("multiline", codec.Config{})
	require.Error(t, err)

	_, err = codec.Lookup("multiline", codec.Config{MultilinePattern: "("})
	require.Error(t, err)

	f, err := codec.Lookup("multiline", codec.Config{MultilinePattern: `^\s`})
	require.NoError(t, err)
	assert.IsType(t, &codec.Multiline{}, f())

	_, err = codec.Lookup("avro", codec.Config{})
	require.Error(t, err)
}

func TestLine(t *testing.T) {
	t.Parallel()

	c := &collector{}
	dec := &codec.Line{}

	for _, l := range []string{"a", "", "c"} {
		require.NoError(t, dec.Decode(l, c.emit))
	}
	require.NoError(t, dec.Flush(c.emit))

	assert.Equal(t, []string{"a", "", "c"}, c.messages())
}

func TestJSON(t *testing.T) {
	t.Parallel()

	c := &collector{}
	dec := &codec.JSON{}

	require.NoError(t, dec.Decode(`{"level":"info","status":200}`, c.emit))
	require.NoError(t, dec.Decode(`   `, c.emit))
	require.NoError(t, dec.Decode(`not json`, c.emit))

	require.Len(t, c.records, 2)
	assert.Equal(t, "info", c.records[0].Fields["level"])
	assert.InDelta(t, 200, c.records[0].Fields["status"], 0)
	assert.Equal(t, "not json", c.records[1].Message)
	assert.Contains(t, c.records[1].Fields, codec.ParseFailureField)
}

func TestMultiline_JoinsContinuationsAndFlushes(t *testing.T) {
	t.Parallel()

	c := &collector{}
	dec := codec.NewMultiline(regexp.MustCompile(`^\s`), false, 0)

	lines := []string{
		"2020-01-01 ERROR boom",
		"  at a.b(c.java:1)",
		"  at d.e(f.java:2)",
		"2020-01-01 INFO ok",
	}
	for _, l := range lines {
		require.NoError(t, dec.Decode(l, c.emit))
	}

	require.Len(t, c.records, 1, "the last record is held until flush")

	require.NoError(t, dec.Flush(c.emit))
	require.NoError(t, dec.Flush(c.emit))

	assert.Equal(t, []string{
		"2020-01-01 ERROR boom\n  at a.b(c.java:1)\n  at d.e(f.java:2)",
		"2020-01-01 INFO ok",
	}, c.messages())
	assert.Equal(t, true, c.records[0].Fields["multiline"])
	assert.Nil(t, c.records[1].Fields)
}

func TestMultiline_Negate(t *testing.T) {
	t.Parallel()

	c := &collector{}
	dec := codec.NewMultiline(regexp.MustCompile(`^\d{4}-`), true, 0)

	for _, l := range []string{"2020-01-01 a", "b", "2020-01-02 c"} {
		require.NoError(t, dec.Decode(l, c.emit))
	}
	require.NoError(t, dec.Flush(c.emit))

	assert.Equal(t, []string{"2020-01-01 a\nb", "2020-01-02 c"}, c.messages())
}

func TestMultiline_MaxLines(t *testing.T) {
	t.Parallel()

	c := &collector{}
	dec := codec.NewMultiline(regexp.MustCompile(`^\s`), false, 2)

	for _, l := range []string{"a", " 1", " 2", " 3"} {
		require.NoError(t, dec.Decode(l, c.emit))
	}
	require.NoError(t, dec.Flush(c.emit))

	assert.Equal(t, []string{"a\n 1", " 2\n 3"}, c.messages())
}

func TestMultiline_EmitErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("sink down")
	dec := codec.NewMultiline(regexp.MustCompile(`^\s`), false, 0)
	failing := func(processor.Record) error { return boom }

	require.NoError(t, dec.Decode("a", failing))
	assert.ErrorIs(t, dec.Decode("b", failing), boom)
}
