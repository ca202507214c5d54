package track

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// ReadBedGraph parses a bedGraph stream (chrom, 0-based start, end, value)
// into a Track, expanding each run into per-base samples.  Input must be
// sorted by (chromosome, start) with non-overlapping runs, which is what
// every bedGraph emitter produces.  "track" header lines are skipped.
func ReadBedGraph(name string, reader io.Reader) (*Track, error) {
	scanner := bufio.NewScanner(reader)
	var tokens [4][]byte
	data := make(map[string][]Sample)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		if gunsafe.BytesToString(tokens[0]) == "track" {
			continue
		}
		if nToken != 4 {
			return nil, fmt.Errorf("track.ReadBedGraph: %s line %d has %d columns, want 4",
				name, lineIdx, nToken)
		}
		start0, err := strconv.Atoi(gunsafe.BytesToString(tokens[1]))
		if err != nil {
			return nil, fmt.Errorf("track.ReadBedGraph: %s line %d: %v", name, lineIdx, err)
		}
		end, err := strconv.Atoi(gunsafe.BytesToString(tokens[2]))
		if err != nil {
			return nil, fmt.Errorf("track.ReadBedGraph: %s line %d: %v", name, lineIdx, err)
		}
		value, err := strconv.ParseFloat(gunsafe.BytesToString(tokens[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("track.ReadBedGraph: %s line %d: %v", name, lineIdx, err)
		}
		if start0 < 0 || end < start0 {
			return nil, fmt.Errorf("track.ReadBedGraph: %s: invalid coordinate pair on line %d",
				name, lineIdx)
		}
		chrom := string(tokens[0])
		for pos := start0 + 1; pos <= end; pos++ {
			data[chrom] = append(data[chrom], Sample{Pos: pos, Value: value})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(name, data)
}

// ReadBedGraphFromPath is a wrapper for ReadBedGraph that takes a path,
// transparently decompressing .gz inputs.
func ReadBedGraphFromPath(name, path string) (t *Track, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return
		}
	}
	return ReadBedGraph(name, reader)
}
