package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iafan/cwalk"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/BurntSushi/profalign/internal/config"
	"github.com/BurntSushi/profalign/internal/errs"
	"github.com/BurntSushi/profalign/internal/xlog"
)

var (
	batchInDir   string
	batchOutDir  string
	batchThreads int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Reconstruct ancestors for every dataset under a directory",
	Long: `batch walks --in-dir for pairs of <name>.fasta/<name>.nwk files
and runs the align pipeline on each pair, writing results to
--out-dir/<name>/. §5's single-threaded, synchronous core is preserved
per dataset; this subcommand's only concurrency is across datasets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfigOrDefault(flagConfigPath)
		if err != nil {
			return err
		}
		return runBatch(conf, batchInDir, batchOutDir, batchThreads)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInDir, "in-dir", "", "directory containing <name>.fasta/<name>.nwk dataset pairs (required)")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", ".", "directory to write per-dataset subdirectories of results to")
	batchCmd.Flags().IntVar(&batchThreads, "threads", 4, "number of datasets to reconstruct concurrently")
	batchCmd.MarkFlagRequired("in-dir")
}

func findDatasets(dir string, threads int) ([]string, error) {
	names := make(map[string]bool)
	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".fasta") {
			names[strings.TrimSuffix(filepath.Base(path), ".fasta")] = true
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(err, "walking "+dir)
	}

	out := make([]string, 0, len(names))
	for name := range names {
		if _, err := os.Stat(filepath.Join(dir, name+".nwk")); err == nil {
			out = append(out, name)
		}
	}
	return out, nil
}

func runBatch(conf config.Config, inDir, outDir string, threads int) error {
	datasets, err := findDatasets(inDir, threads)
	if err != nil {
		return err
	}
	if len(datasets) == 0 {
		return errs.Inputf("no <name>.fasta/<name>.nwk dataset pairs found under %s", inDir)
	}
	xlog.Infof("found %d datasets under %s", len(datasets), inDir)

	pbs := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
	bar := pbs.AddBar(int64(len(datasets)),
		mpb.PrependDecorators(
			decor.Name("datasets: ", decor.WC{W: len("datasets: "), C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("ETA: "),
			decor.EwmaETA(decor.ET_STYLE_GO, 10),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)

	jobs := make(chan string, len(datasets))
	for _, name := range datasets {
		jobs <- name
	}
	close(jobs)

	errCh := make(chan error, len(datasets))
	done := make(chan struct{})
	for w := 0; w < threads; w++ {
		go func() {
			for name := range jobs {
				start := time.Now()
				fasta := filepath.Join(inDir, name+".fasta")
				tree := filepath.Join(inDir, name+".nwk")
				out := filepath.Join(outDir, name)
				err := runAlign(conf, fasta, tree, out)
				bar.EwmaIncrBy(1, time.Since(start))
				errCh <- err
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < threads; w++ {
		<-done
	}
	close(errCh)

	var failures int
	for err := range errCh {
		if err != nil {
			failures++
			xlog.Warn(err, "dataset reconstruction failed")
		}
	}
	pbs.Wait()
	if failures > 0 {
		return errs.Resourcef("%d of %d datasets failed, see warnings above", failures, len(datasets))
	}
	return nil
}
