// Command frsdump inspects results database files: their catalogs, time
// steps and values.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	rdb "github.com/openfedem/rdb"
)

var (
	flagCache   string
	flagPreRead int
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "frsdump",
		Short:         "Inspect results database files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagCache, "cache", "", "path of the time index cache database")
	root.PersistentFlags().IntVar(&flagPreRead, "preread", 0, "number of step records to cache per file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log parse diagnostics")

	root.AddCommand(infoCmd(), treeCmd(), timesCmd(), getCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "frsdump:", err)
		os.Exit(1)
	}
}

func openExtractor(files []string) (*rdb.Extractor, error) {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ex, err := rdb.NewExtractor("frsdump", rdb.Options{
		Logger:       log,
		CachePath:    flagCache,
		PreReadSteps: flagPreRead,
	})
	if err != nil {
		return nil, err
	}
	if err := ex.AddFiles(files); err != nil {
		ex.Close()
		return nil, err
	}
	return ex, nil
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>...",
		Short: "Show per-file size parameters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExtractor(args)
			if err != nil {
				return err
			}
			defer ex.Close()

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"File", "Module", "Written", "Steps", "Record bytes", "First", "Last"})
			for _, fn := range ex.Files() {
				c := ex.Container(fn)
				first, last := "-", "-"
				if lo, hi, ok := c.TimeRange(); ok {
					first = strconv.FormatFloat(lo, 'g', -1, 64)
					last = strconv.FormatFloat(hi, 'g', -1, 64)
				}
				written := "-"
				if !c.Date().IsZero() {
					written = c.Date().Format("2006-01-02 15:04:05")
				}
				table.Append([]string{
					fn,
					c.Module(),
					written,
					strconv.Itoa(c.StepCount()),
					strconv.Itoa(c.StepBytes()),
					first,
					last,
				})
			}
			table.Render()
			return nil
		},
	}
}

func treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <file>...",
		Short: "Dump the merged result hierarchy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExtractor(args)
			if err != nil {
				return err
			}
			defer ex.Close()
			ex.DumpHierarchy(os.Stdout)
			return nil
		},
	}
}

func timesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "times <file>...",
		Short: "List the union of time steps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExtractor(args)
			if err != nil {
				return err
			}
			defer ex.Close()
			for _, t := range ex.ValidTimes(nil) {
				fmt.Println(strconv.FormatFloat(t, 'g', -1, 64))
			}
			return nil
		},
	}
}

func getCmd() *cobra.Command {
	var at float64
	var result string
	cmd := &cobra.Command{
		Use:   "get --result <description> --at <time> <file>...",
		Short: "Read one result value at a point in time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := rdb.ParseResultDescription(result)
			if err != nil {
				return err
			}
			ex, err := openExtractor(args)
			if err != nil {
				return err
			}
			defer ex.Close()

			found, ok := ex.SetPosition(at, false)
			if !ok {
				return fmt.Errorf("no time step data in the given files")
			}
			v, err := ex.Value(d)
			if err != nil {
				return err
			}
			fmt.Printf("t=%g  %s = %v\n", found, d.Text(), v)
			return nil
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "physical time to position at")
	cmd.Flags().StringVar(&result, "result", "", "result description, e.g. '<\"Triad\",17,2,\"TMAT34\",\"Position matrix\">'")
	cmd.MarkFlagRequired("result")
	return cmd
}
