package dmr

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"

	"github.com/epistat/methdiff/interval"
)

// ReadSitesTSV parses a per-site methylation table.  The header must be
//
//	chrom  pos  <sample>.meth  <sample>.cov  ...
//
// with one .meth/.cov column pair per sample, and one 1-based position per
// row.  It returns the sites and the sample names in column order.
func ReadSitesTSV(reader io.Reader) ([]Site, []string, error) {
	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("dmr.ReadSitesTSV: empty input")
	}
	header := strings.Fields(scanner.Text())
	if len(header) < 4 || header[0] != "chrom" || header[1] != "pos" || (len(header)-2)%2 != 0 {
		return nil, nil, fmt.Errorf("dmr.ReadSitesTSV: malformed header %q", scanner.Text())
	}
	var samples []string
	for i := 2; i < len(header); i += 2 {
		name := strings.TrimSuffix(header[i], ".meth")
		if name == header[i] || header[i+1] != name+".cov" {
			return nil, nil, fmt.Errorf("dmr.ReadSitesTSV: expected %q/%q column pair, got %q/%q",
				name+".meth", name+".cov", header[i], header[i+1])
		}
		samples = append(samples, name)
	}

	var sites []Site
	lineIdx := 1
	for scanner.Scan() {
		lineIdx++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(header) {
			return nil, nil, fmt.Errorf("dmr.ReadSitesTSV: line %d has %d columns, want %d",
				lineIdx, len(fields), len(header))
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, nil, fmt.Errorf("dmr.ReadSitesTSV: line %d: %v", lineIdx, err)
		}
		iv, err := interval.New(fields[0], pos, pos, interval.StrandNone)
		if err != nil {
			return nil, nil, fmt.Errorf("dmr.ReadSitesTSV: line %d: %v", lineIdx, err)
		}
		counts := make([]SiteCounts, len(samples))
		for s := range samples {
			meth, err := strconv.ParseUint(fields[2+2*s], 10, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("dmr.ReadSitesTSV: line %d: %v", lineIdx, err)
			}
			cov, err := strconv.ParseUint(fields[3+2*s], 10, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("dmr.ReadSitesTSV: line %d: %v", lineIdx, err)
			}
			counts[s] = SiteCounts{Meth: uint32(meth), Cov: uint32(cov)}
		}
		sites = append(sites, Site{Interval: iv, Counts: counts})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return sites, samples, nil
}

// ReadPhenotypesTSV parses a phenotype table with header
//
//	sample  condition  [pair]
//
// Row order must match the methylation table's sample column order; the
// Dataset constructor enforces the join.
func ReadPhenotypesTSV(reader io.Reader) ([]Phenotype, error) {
	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("dmr.ReadPhenotypesTSV: empty input")
	}
	header := strings.Fields(scanner.Text())
	if len(header) < 2 || header[0] != "sample" || header[1] != "condition" {
		return nil, fmt.Errorf("dmr.ReadPhenotypesTSV: malformed header %q", scanner.Text())
	}
	hasPair := len(header) >= 3 && header[2] == "pair"

	var pheno []Phenotype
	lineIdx := 1
	for scanner.Scan() {
		lineIdx++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(header) {
			return nil, fmt.Errorf("dmr.ReadPhenotypesTSV: line %d has %d columns, want %d",
				lineIdx, len(fields), len(header))
		}
		ph := Phenotype{Sample: fields[0], Condition: fields[1]}
		if hasPair {
			ph.Pair = fields[2]
		}
		pheno = append(pheno, ph)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pheno, nil
}

func openMaybeGzip(path string) (io.Reader, func() error, error) {
	ctx := vcontext.Background()
	infile, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	closer := func() error { return infile.Close(ctx) }
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			_ = closer()
			return nil, nil, err
		}
	}
	return reader, closer, nil
}

// ReadSitesTSVFromPath is a wrapper for ReadSitesTSV that takes a path,
// transparently decompressing .gz inputs.
func ReadSitesTSVFromPath(path string) (sites []Site, samples []string, err error) {
	reader, closer, err := openMaybeGzip(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ReadSitesTSV(reader)
}

// ReadPhenotypesTSVFromPath is a wrapper for ReadPhenotypesTSV that takes a
// path, transparently decompressing .gz inputs.
func ReadPhenotypesTSVFromPath(path string) (pheno []Phenotype, err error) {
	reader, closer, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ReadPhenotypesTSV(reader)
}
