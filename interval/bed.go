package interval

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

// getTokens identifies up to the first len(tokens) whitespace-delimited
// tokens from curLine, returning the number of tokens saved.  Any (group of)
// characters <= ' ' is treated as a delimiter.  These simple loops beat the
// standard library string-split functions for short fixed-column lines.
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

// ReadBED parses BED3/BED6 records into a Set, converting the usual
// zero-based half-open BED coordinates to this package's 1-based inclusive
// convention.  Column 4 (name), when present and not ".", is stored as
// Meta["gene_name"]; column 6, when present, sets the strand.  Empty
// intervals (start == end) are skipped.  Unlike the BED-union loaders in
// pipeline tools, this keeps every record separate and in file order, since
// anchor order defines output row order downstream.
func ReadBED(reader io.Reader) (Set, error) {
	scanner := bufio.NewScanner(reader)
	var tokens [6][]byte
	var out Set
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		if nToken < 3 {
			return nil, fmt.Errorf("interval.ReadBED: line %d has fewer than 3 columns", lineIdx)
		}
		start0, err := strconv.Atoi(gunsafe.BytesToString(tokens[1]))
		if err != nil {
			return nil, fmt.Errorf("interval.ReadBED: line %d: %v", lineIdx, err)
		}
		end, err := strconv.Atoi(gunsafe.BytesToString(tokens[2]))
		if err != nil {
			return nil, fmt.Errorf("interval.ReadBED: line %d: %v", lineIdx, err)
		}
		if start0 < 0 || end < start0 {
			return nil, fmt.Errorf("interval.ReadBED: invalid coordinate pair on line %d", lineIdx)
		}
		if end == start0 {
			continue
		}
		strand := StrandNone
		if nToken >= 6 {
			switch tokens[5][0] {
			case '+':
				strand = StrandPlus
			case '-':
				strand = StrandMinus
			}
		}
		iv, err := New(string(tokens[0]), start0+1, end, strand)
		if err != nil {
			return nil, fmt.Errorf("interval.ReadBED: line %d: %v", lineIdx, err)
		}
		if nToken >= 4 {
			if name := string(tokens[3]); name != "." && name != "" {
				iv.Meta = map[string]string{"gene_name": name}
			}
		}
		out = append(out, iv)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadBEDFromPath is a wrapper for ReadBED that takes a path instead of an
// io.Reader, transparently decompressing .gz inputs.
func ReadBEDFromPath(path string) (s Set, err error) {
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
	return ReadBED(reader)
}
