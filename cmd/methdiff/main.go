package main

// methdiff runs one of two batch pipelines per invocation:
//
//   1. Aggregation (-aggregate): bin signal tracks around anchor intervals
//      into fixed-width profile matrices, optionally k-means clustering the
//      anchors of one track for stratified visualization.
//
//      methdiff -aggregate -tracks ATAC=atac.bedgraph,H3K4me3=k4.bedgraph \
//          -anchors promoters.bed -extend 1000 -bin-width 20 \
//          -matrix-output matrix.tsv -k 4 -cluster-track ATAC
//
//   2. Differential testing (default): fit per-site statistics for a paired
//      two-condition methylation dataset, call and rank differential
//      regions, and annotate them with overlapping genes.
//
//      methdiff -sites sites.tsv -phenotypes pheno.tsv \
//          -coefficient Typecancer -genes genes.bed -regions-output dmrs.tsv
//
// Both paths read plain or gzipped inputs and emit TSVs for the plotting/
// reporting collaborators.

import (
	"context"
	"flag"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"

	"github.com/epistat/methdiff/aggregate"
	"github.com/epistat/methdiff/annotate"
	"github.com/epistat/methdiff/cluster"
	"github.com/epistat/methdiff/dmr"
	"github.com/epistat/methdiff/interval"
	"github.com/epistat/methdiff/track"
)

type aggregateFlags struct {
	tracks       string
	anchorsPath  string
	promoterUp   int
	promoterDown int
	relabel      string
	matrixPath   string
	k            int
	clusterTrack string
	seed         int64
	labelsPath   string
}

type testFlags struct {
	sitesPath    string
	phenoPath    string
	refCondition string
	genesPath    string
	regionsPath  string
	topN         int
	topPath      string
}

func parseTrackArg(arg string) (map[string]*track.Track, error) {
	tracks := make(map[string]*track.Track)
	for _, entry := range strings.Split(arg, ",") {
		name, path, ok := strings.Cut(entry, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("malformed -tracks entry %q, want name=path", entry)
		}
		tr, err := track.ReadBedGraphFromPath(name, path)
		if err != nil {
			return nil, err
		}
		tracks[name] = tr
		log.Printf("Loaded track %s from %s", name, path)
	}
	return tracks, nil
}

func loadAnchors(flags aggregateFlags) (interval.Set, error) {
	anchors, err := interval.ReadBEDFromPath(flags.anchorsPath)
	if err != nil {
		return nil, err
	}
	if flags.promoterUp > 0 || flags.promoterDown > 0 {
		if anchors, err = interval.Promoters(anchors, flags.promoterUp, flags.promoterDown); err != nil {
			return nil, err
		}
	}
	switch flags.relabel {
	case "":
	case "ucsc":
		anchors, err = interval.RelabelStyle(anchors, interval.StyleUCSC)
	case "ensembl":
		anchors, err = interval.RelabelStyle(anchors, interval.StyleEnsembl)
	default:
		err = fmt.Errorf("unknown -relabel style %q", flags.relabel)
	}
	return anchors, err
}

// writeFloat writes v with fixed precision, or "NA" for missing bins so
// that downstream consumers see missing data explicitly.
func writeFloat(w *tsv.Writer, v float64) {
	if math.IsNaN(v) {
		w.WriteString("NA")
		return
	}
	w.WriteString(strconv.FormatFloat(v, 'g', 6, 64))
}

func writeMatrix(ctx context.Context, path string, m *aggregate.Matrix) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("track")
	w.WriteString("anchor")
	w.WriteString("interval")
	for _, off := range m.Axis {
		w.WriteString(strconv.FormatFloat(off, 'g', 6, 64))
	}
	if err = w.EndLine(); err != nil {
		return err
	}
	for _, name := range m.Tracks() {
		for i, anchor := range m.Anchors {
			w.WriteString(name)
			w.WriteInt64(int64(i))
			w.WriteString(anchor.String())
			for _, v := range m.Row(name, i) {
				writeFloat(w, v)
			}
			if err = w.EndLine(); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

func writeLabels(ctx context.Context, path string, anchors interval.Set, labels []int) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	for i, label := range labels {
		w.WriteString(anchors[i].String())
		w.WriteInt64(int64(label))
		if err = w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeRegions(ctx context.Context, path string, regions []dmr.Region) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("chromosome")
	w.WriteString("start")
	w.WriteString("end")
	w.WriteString("numCpGs")
	w.WriteString("meanDiff")
	w.WriteString("minSmoothedFDR")
	w.WriteString("overlappingGenes")
	if err = w.EndLine(); err != nil {
		return err
	}
	for _, r := range regions {
		w.WriteString(r.Chrom)
		w.WriteInt64(int64(r.Start))
		w.WriteInt64(int64(r.End))
		w.WriteInt64(int64(r.NumCpGs))
		writeFloat(w, r.MeanDiff)
		writeFloat(w, r.MinFDR)
		if len(r.Genes) == 0 {
			w.WriteString("NA")
		} else {
			w.WriteString(strings.Join(r.Genes, ","))
		}
		if err = w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeGenes(ctx context.Context, path string, genes interval.Set) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	for _, g := range genes {
		w.WriteString(g.Chrom)
		w.WriteInt64(int64(g.Start))
		w.WriteInt64(int64(g.End))
		w.WriteString(string(g.Strand))
		w.WriteString(g.Name())
		if err = w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

func runAggregate(ctx context.Context, flags aggregateFlags, opts aggregate.Opts) {
	if flags.tracks == "" || flags.anchorsPath == "" {
		log.Fatal("-aggregate requires both -tracks and -anchors")
	}
	tracks, err := parseTrackArg(flags.tracks)
	if err != nil {
		log.Fatalf("loading tracks: %v", err)
	}
	anchors, err := loadAnchors(flags)
	if err != nil {
		log.Fatalf("loading anchors: %v", err)
	}
	log.Printf("Aggregating %d tracks over %d anchors (%s mode)", len(tracks), len(anchors), opts.Mode)

	m, err := aggregate.Aggregate(tracks, anchors, opts)
	if err != nil {
		log.Fatalf("aggregate: %v", err)
	}
	if err := writeMatrix(ctx, flags.matrixPath, m); err != nil {
		log.Fatalf("writing %s: %v", flags.matrixPath, err)
	}
	log.Printf("Wrote %d x %d matrix per track to %s", len(anchors), m.NBins, flags.matrixPath)

	if flags.k > 0 {
		rows := m.TrackRows(flags.clusterTrack)
		if rows == nil {
			log.Fatalf("cluster track %q is not among the loaded tracks", flags.clusterTrack)
		}
		labels, err := cluster.KMeans(rows, flags.k, flags.seed)
		if err != nil {
			log.Fatalf("cluster: %v", err)
		}
		if err := writeLabels(ctx, flags.labelsPath, anchors, labels); err != nil {
			log.Fatalf("writing %s: %v", flags.labelsPath, err)
		}
		log.Printf("Wrote k=%d labels for track %s to %s", flags.k, flags.clusterTrack, flags.labelsPath)
	}
}

func runTest(ctx context.Context, flags testFlags, opts dmr.Opts) {
	if flags.sitesPath == "" || flags.phenoPath == "" {
		log.Fatal("test mode requires both -sites and -phenotypes")
	}
	sites, samples, err := dmr.ReadSitesTSVFromPath(flags.sitesPath)
	if err != nil {
		log.Fatalf("loading sites: %v", err)
	}
	pheno, err := dmr.ReadPhenotypesTSVFromPath(flags.phenoPath)
	if err != nil {
		log.Fatalf("loading phenotypes: %v", err)
	}
	ds, err := dmr.NewDataset(sites, samples, pheno)
	if err != nil {
		log.Fatalf("binding dataset: %v", err)
	}
	design, err := dmr.DesignFromPhenotypes(pheno, flags.refCondition)
	if err != nil {
		log.Fatalf("building design: %v", err)
	}
	log.Printf("Testing %d sites x %d samples, design columns %v, coefficient %s",
		len(sites), len(samples), design.Names(), opts.Coefficient)

	regions, stats, err := dmr.CallRegions(ds, design, opts)
	if err != nil {
		log.Fatalf("calling regions: %v", err)
	}
	log.Printf("Stats: %d sites dropped for low coverage, %d with unstable fits, %d tested",
		stats.SitesLowCoverage, stats.SitesUnstableFit, stats.SitesTested)
	log.Printf("Stats: %d candidates, %d below min CpG count, %d not significant, %d called",
		stats.Candidates, stats.CandidatesTooSmall, stats.RegionsNotSignificant, stats.RegionsCalled)

	var genes interval.Set
	if flags.genesPath != "" {
		if genes, err = interval.ReadBEDFromPath(flags.genesPath); err != nil {
			log.Fatalf("loading genes: %v", err)
		}
		regions = annotate.Annotate(regions, genes)
	}
	if err := writeRegions(ctx, flags.regionsPath, regions); err != nil {
		log.Fatalf("writing %s: %v", flags.regionsPath, err)
	}
	log.Printf("Wrote %d regions to %s", len(regions), flags.regionsPath)

	if flags.topPath != "" && genes != nil {
		top := annotate.TopGenes(regions, genes, flags.topN)
		if err := writeGenes(ctx, flags.topPath, top); err != nil {
			log.Fatalf("writing %s: %v", flags.topPath, err)
		}
		log.Printf("Wrote %d genes for the top %d regions to %s", len(top), flags.topN, flags.topPath)
	}
}

func main() {
	aggregateMode := false
	flag.BoolVar(&aggregateMode, "aggregate", false, "Aggregate signal tracks over anchors instead of running the differential test.")

	aggOpts := aggregate.DefaultOpts
	aggFlags := aggregateFlags{}
	flag.StringVar(&aggFlags.tracks, "tracks", "", "Comma-separated name=path list of bedGraph signal tracks.")
	flag.StringVar(&aggFlags.anchorsPath, "anchors", "", "BED file of anchor intervals (promoters, binding sites, gene bodies).")
	flag.IntVar(&aggFlags.promoterUp, "promoter-up", 0, "Derive promoter anchors this many bases 5' of each anchor TSS (requires stranded anchors).")
	flag.IntVar(&aggFlags.promoterDown, "promoter-down", 0, "Derive promoter anchors this many bases 3' of each anchor TSS.")
	flag.StringVar(&aggFlags.relabel, "relabel", "", `Relabel anchor chromosome names: "ucsc" or "ensembl".`)
	flag.StringVar(&aggFlags.matrixPath, "matrix-output", "./matrix.tsv", "Aggregated matrix TSV.")
	flag.IntVar(&aggFlags.k, "k", 0, "Cluster anchors into k groups (0 disables clustering).")
	flag.StringVar(&aggFlags.clusterTrack, "cluster-track", "", "Track whose profiles drive clustering.")
	flag.Int64Var(&aggFlags.seed, "seed", 1, "Random seed for cluster initialization.")
	flag.StringVar(&aggFlags.labelsPath, "labels-output", "./labels.tsv", "Cluster label TSV.")
	flag.IntVar(&aggOpts.Extend, "extend", aggregate.DefaultOpts.Extend, "Half-window around each anchor, in bases.")
	flag.IntVar(&aggOpts.BinWidth, "bin-width", aggregate.DefaultOpts.BinWidth, "Bin width in bases.")
	modeArg := "center"
	flag.StringVar(&modeArg, "mode", "center", `Anchor mode: "center" or "scale".`)
	flag.BoolVar(&aggOpts.Smooth, "smooth", false, "Smooth each profile row with a running mean.")
	flag.IntVar(&aggOpts.SmoothWidth, "smooth-width", aggregate.DefaultOpts.SmoothWidth, "Running-mean window in bins (aggregation) or sites (testing).")

	dmrOpts := dmr.DefaultOpts
	testFlags := testFlags{}
	flag.StringVar(&testFlags.sitesPath, "sites", "", "Per-site methylation TSV (chrom, pos, <sample>.meth/<sample>.cov pairs).")
	flag.StringVar(&testFlags.phenoPath, "phenotypes", "", "Phenotype TSV (sample, condition, pair).")
	flag.StringVar(&testFlags.refCondition, "ref-condition", "normal", "Reference condition level of the design.")
	flag.StringVar(&testFlags.genesPath, "genes", "", "Gene BED used to annotate called regions.")
	flag.StringVar(&testFlags.regionsPath, "regions-output", "./regions.tsv", "Called region TSV.")
	flag.IntVar(&testFlags.topN, "top", 10, "Number of top regions for -top-output gene selection.")
	flag.StringVar(&testFlags.topPath, "top-output", "", "Gene TSV for the top regions (requires -genes).")
	flag.StringVar(&dmrOpts.Coefficient, "coefficient", "", `Design coefficient to test, e.g. "Typecancer".`)
	flag.BoolVar(&dmrOpts.AllCovered, "all-covered", dmr.DefaultOpts.AllCovered, "Drop sites with any zero-coverage sample.")
	flag.Float64Var(&dmrOpts.BandwidthKb, "bandwidth", dmr.DefaultOpts.BandwidthKb, "Proximity bandwidth C in kilobases for region grouping.")
	flag.IntVar(&dmrOpts.MinCpGs, "min-cpgs", dmr.DefaultOpts.MinCpGs, "Minimum sites per candidate region.")
	flag.Float64Var(&dmrOpts.PCutoff, "pcutoff", dmr.DefaultOpts.PCutoff, "FDR ceiling for calling a region.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if aggregateMode {
		switch modeArg {
		case "center":
			aggOpts.Mode = aggregate.ModeCenter
		case "scale":
			aggOpts.Mode = aggregate.ModeScale
		default:
			log.Fatalf("unknown -mode %q", modeArg)
		}
		runAggregate(ctx, aggFlags, aggOpts)
	} else {
		dmrOpts.SmoothWidth = aggOpts.SmoothWidth
		runTest(ctx, testFlags, dmrOpts)
	}
	log.Printf("All done")
}
