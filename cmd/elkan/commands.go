package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/elkan"
	"github.com/hupe1980/elkan/blobstore"
	"github.com/hupe1980/elkan/codec"
	"github.com/hupe1980/elkan/dataset"
	"github.com/hupe1980/elkan/internal/compress"
	"github.com/spf13/cobra"
)

func (a *app) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Convert a raw float32 file into a segmented dataset",
		Long: `Read a headerless file of little-endian float32 frames and write it
to the store as compressed segments plus manifest.json.`,
		Args: cobra.NoArgs,
		RunE: a.runImport,
	}
	cmd.Flags().String("input", "", "Raw float32 input file")
	cmd.Flags().Int("dim", 0, "Frame dimension")
	cmd.Flags().Int("frames-per-segment", 0, "Frames per segment")
	cmd.Flags().String("compression", "", "Segment compression: none, lz4, zstd")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("dim")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	input, _ := cmd.Flags().GetString("input")
	dim, _ := cmd.Flags().GetInt("dim")

	raw, err := openRaw(input, dim)
	if err != nil {
		return err
	}
	defer func() { _ = raw.Close() }()

	store, err := openStore(ctx, a.cfg.Store, a.rc)
	if err != nil {
		return err
	}

	ct, _ := compress.ParseType(a.cfg.Dataset.Compression)
	w, err := dataset.NewWriter(store,
		dataset.WithFramesPerSegment(a.cfg.Dataset.FramesPerSegment),
		dataset.WithCompression(ct),
		dataset.WithWriterResourceController(a.rc),
		dataset.WithWriterLogger(a.logger.Logger),
	)
	if err != nil {
		return err
	}

	start := time.Now()
	m, err := w.Write(ctx, raw)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d frames (dimension %d) into %d segments in %s\n",
		m.Frames, m.Dimension, len(m.Segments), time.Since(start).Round(time.Millisecond))
	return nil
}

func (a *app) clusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster a segmented dataset",
		Args:  cobra.NoArgs,
		RunE:  a.runCluster,
	}
	f := cmd.Flags()
	f.IntP("k", "k", 0, "Number of clusters")
	f.Int64("seed", 0, "Seed for center sampling (default: time-based)")
	f.Int("max-iterations", 0, "Iteration cap, <= 0 for none")
	f.String("policy", "", "Empty cluster policy: reseed-farthest or keep")
	f.Bool("exhaustive", false, "Disable bound pruning")
	f.Float64("fraction", 0, "Use only this leading fraction of the dataset")
	f.String("output", "", "Blob name for the result (default results/<id>.json)")
	f.String("publish", "", "Publish the result under this id and move CURRENT to it")
	return cmd
}

func (a *app) runCluster(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	if cfg.Cluster.K <= 0 {
		return errors.New("k must be set (flag -k, ELKAN_K or cluster.k)")
	}

	store, err := openStore(ctx, cfg.Store, a.rc)
	if err != nil {
		return err
	}

	ds, err := dataset.OpenSegmented(ctx, store,
		dataset.WithFraction(cfg.Dataset.Fraction),
		dataset.WithResourceController(a.rc),
		dataset.WithChecksumVerification(cfg.Dataset.VerifyChecksums),
	)
	if err != nil {
		return err
	}
	defer func() { _ = ds.Close() }()

	policy, _ := elkan.ParseEmptyClusterPolicy(cfg.Cluster.EmptyClusterPolicy)
	opts := []elkan.Option{
		elkan.WithLogger(a.logger.WithDimension(ds.Dim()).WithCount(ds.Len())),
		elkan.WithMaxIterations(cfg.Cluster.MaxIterations),
		elkan.WithEmptyClusterPolicy(policy),
		elkan.WithExhaustive(cfg.Cluster.Exhaustive),
	}
	if cfg.Cluster.Seed != nil {
		opts = append(opts, elkan.WithSeed(*cfg.Cluster.Seed))
	}

	c, err := elkan.New(ds, cfg.Cluster.K, opts...)
	if err != nil {
		return err
	}
	res, err := c.Run(ctx)
	if err != nil {
		return err
	}

	if a.logger.Enabled(ctx, slog.LevelDebug) {
		st, err := c.Status()
		if err != nil {
			return err
		}
		for center, size := range st.Sizes {
			a.logger.DebugContext(ctx, "cluster status", "cluster", center, "size", size)
		}
	}

	id, _ := cmd.Flags().GetString("publish")
	output, _ := cmd.Flags().GetString("output")

	var saved string
	switch {
	case id != "":
		if saved, err = res.Publish(ctx, store, id); err != nil {
			return err
		}
	default:
		saved = output
		if saved == "" {
			saved = elkan.ResultName(res.CreatedAt.Format("20060102T150405Z"))
		}
		if err := res.Save(ctx, store, saved); err != nil {
			return err
		}
	}

	writeReport(cmd, res, ds.SegmentCount(), saved)
	return nil
}

func writeReport(cmd *cobra.Command, res *elkan.Result, segs int, saved string) {
	exhaustive := int64(res.Points) * int64(res.K) * int64(res.Iterations+1)
	pct := 0.0
	if exhaustive > 0 {
		pct = 100 * float64(res.DistanceComputations) / float64(exhaustive)
	}
	stats := res.SizeStats()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "points\t%d\n", res.Points)
	fmt.Fprintf(tw, "segments\t%d\n", segs)
	fmt.Fprintf(tw, "k\t%d\n", res.K)
	fmt.Fprintf(tw, "iterations\t%d\n", res.Iterations)
	fmt.Fprintf(tw, "converged\t%t\n", res.Converged)
	fmt.Fprintf(tw, "distance computations\t%d (%.1f%% of exhaustive)\n", res.DistanceComputations, pct)
	fmt.Fprintf(tw, "inertia\t%.6g\n", res.Inertia)
	fmt.Fprintf(tw, "cluster sizes\tmin %.0f, max %.0f, mean %.1f, empty %d\n", stats.Min, stats.Max, stats.Mean, stats.Empty)
	fmt.Fprintf(tw, "duration\t%s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "result\t%s\n", saved)
	_ = tw.Flush()
}

func (a *app) infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the dataset manifest and the current result",
		Args:  cobra.NoArgs,
		RunE:  a.runInfo,
	}
	cmd.Flags().Bool("json", false, "Also print the manifest as JSON")
	cmd.Flags().Int("cluster", -1, "List the frames assigned to this cluster of the current result")
	return cmd
}

func (a *app) runInfo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx, a.cfg.Store, a.rc)
	if err != nil {
		return err
	}

	m, err := dataset.ReadManifest(ctx, store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var total int64
	for _, s := range m.Segments {
		total += s.Bytes
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "frames\t%d\n", m.Frames)
	fmt.Fprintf(tw, "dimension\t%d\n", m.Dimension)
	fmt.Fprintf(tw, "segments\t%d x %d frames\n", len(m.Segments), m.FramesPerSegment)
	fmt.Fprintf(tw, "compression\t%s\n", m.Compression)
	fmt.Fprintf(tw, "stored bytes\t%d (raw %d)\n", total, int64(m.Frames)*int64(m.Dimension)*4)
	fmt.Fprintf(tw, "created\t%s\n", m.CreatedAt.Format(time.RFC3339))

	cluster, _ := cmd.Flags().GetInt("cluster")

	res, err := elkan.LoadCurrent(ctx, store)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		if cluster >= 0 {
			return fmt.Errorf("--cluster: no current result: %w", err)
		}
		fmt.Fprintf(tw, "current result\tnone\n")
	case err != nil:
		return err
	default:
		fmt.Fprintf(tw, "current result\tk=%d iterations=%d converged=%t\n", res.K, res.Iterations, res.Converged)
	}

	if cluster >= 0 {
		members, err := res.Members(cluster)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "cluster %d\t%d frames in %d segments\n",
			cluster, members.GetCardinality(), segmentsTouched(members, m.FramesPerSegment))
		fmt.Fprintf(tw, "members\t%s\n", formatRanges(members))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := codec.JSON{}.Marshal(m)
		if err != nil {
			return err
		}
		_, err = out.Write(append(data, '\n'))
		return err
	}
	return nil
}

// formatRanges renders a bitmap as comma-separated runs, e.g. "0-3,7,9-10".
func formatRanges(bm *roaring.Bitmap) string {
	var b strings.Builder
	it := bm.Iterator()
	for it.HasNext() {
		lo := it.Next()
		hi := lo
		for it.HasNext() && it.PeekNext() == hi+1 {
			hi = it.Next()
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if lo == hi {
			fmt.Fprintf(&b, "%d", lo)
		} else {
			fmt.Fprintf(&b, "%d-%d", lo, hi)
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// segmentsTouched counts the segments holding at least one member, i.e. the
// segment loads needed to read the cluster back.
func segmentsTouched(bm *roaring.Bitmap, framesPerSegment int) int {
	if framesPerSegment <= 0 || bm.IsEmpty() {
		return 0
	}
	fps := uint64(framesPerSegment)
	count := 0
	for seg := uint64(0); seg*fps <= uint64(bm.Maximum()); seg++ {
		if bm.IntersectsWithInterval(seg*fps, (seg+1)*fps) {
			count++
		}
	}
	return count
}
