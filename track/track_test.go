package track

import (
	"math"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"

	"github.com/epistat/methdiff/interval"
)

func TestNewRejectsUnsorted(t *testing.T) {
	_, err := New("atac", map[string][]Sample{
		"chr1": {{Pos: 10, Value: 1}, {Pos: 5, Value: 2}},
	})
	require.Error(t, err)

	_, err = New("atac", map[string][]Sample{
		"chr1": {{Pos: 10, Value: 1}, {Pos: 10, Value: 2}},
	})
	require.Error(t, err)
}

func TestQuery(t *testing.T) {
	tr, err := New("atac", map[string][]Sample{
		"chr1": {{Pos: 10, Value: 1.5}, {Pos: 12, Value: 2.5}, {Pos: 20, Value: 9}},
	})
	require.NoError(t, err)

	iv, err := interval.New("chr1", 9, 13, interval.StrandNone)
	require.NoError(t, err)
	got := tr.Query(iv)
	require.Len(t, got, 5)
	expect.EQ(t, math.IsNaN(got[0]), true) // pos 9: missing
	expect.EQ(t, got[1], 1.5)              // pos 10
	expect.EQ(t, math.IsNaN(got[2]), true) // pos 11
	expect.EQ(t, got[3], 2.5)              // pos 12
	expect.EQ(t, math.IsNaN(got[4]), true) // pos 13

	// Missing chromosome: all NaN, never an error.
	iv, err = interval.New("chrX", 1, 3, interval.StrandNone)
	require.NoError(t, err)
	for _, v := range tr.Query(iv) {
		expect.EQ(t, math.IsNaN(v), true)
	}
}

func TestReadBedGraph(t *testing.T) {
	in := strings.Join([]string{
		"track type=bedGraph name=atac",
		"chr1\t0\t3\t1.0",
		"chr1\t5\t6\t2.0",
		"chr2\t10\t12\t0.5",
	}, "\n")
	tr, err := ReadBedGraph("atac", strings.NewReader(in))
	require.NoError(t, err)

	iv, _ := interval.New("chr1", 1, 7, interval.StrandNone)
	got := tr.Query(iv)
	expect.EQ(t, got[0], 1.0) // pos 1
	expect.EQ(t, got[1], 1.0)
	expect.EQ(t, got[2], 1.0)
	expect.EQ(t, math.IsNaN(got[3]), true) // pos 4 uncovered
	expect.EQ(t, got[5], 2.0)              // pos 6
	expect.EQ(t, math.IsNaN(got[6]), true)

	iv, _ = interval.New("chr2", 11, 12, interval.StrandNone)
	got = tr.Query(iv)
	expect.EQ(t, got[0], 0.5)
	expect.EQ(t, got[1], 0.5)

	_, err = ReadBedGraph("bad", strings.NewReader("chr1\t0\t3\n"))
	require.Error(t, err)
}
