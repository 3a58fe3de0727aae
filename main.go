package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	configFile string
	cpuprofile string
	memprofile string
	verbose    bool

	config Config
}

func main() {
	cmd := newRootCmd()
	cmd.SetArgs(longFlagArgs(cmd, os.Args[1:]))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{config: *defaultConfig()}

	cmd := &cobra.Command{
		Use:   "demux_samples",
		Short: "Demultiplex samples based on the first barcode that has been ligated",
		Long: "Assigns every alevin-fry barcode to a sample by looking up its last\n" +
			"ligated barcode in a barcode to sample mapping file, and writes\n" +
			"bc_sample_mapping.txt next to the mapping file.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(opts.verbose)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			config, err := opts.resolveConfig(cmd)
			if err != nil {
				return err
			}
			return profiled(opts, logger, func() error { return run(config, logger) })
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.config.AlevinFryDir, "alevin_fry_dir", "", "main alevin-fry directory")
	f.StringVar(&opts.config.BarcodeMappingDir, "barcode_mapping_dir", "", "directory that contains the barcode to samples mapping file")
	f.StringVar(&opts.config.MappingFile, "mapping_file", "", "the barcodes to samples mapping file")
	f.BoolVar(&opts.config.FilterBarcodes, "filter_barcodes", false, "drop barcodes that cannot be associated with a sample")
	f.IntVar(&opts.config.KeyLength, "key_length", defaultKeyLength, "length of the first ligated barcode at the end of each barcode")
	f.StringVar(&opts.config.OutputFile, "output_file", defaultOutputFile, "output file name inside barcode_mapping_dir (.gz to compress)")
	f.IntVar(&opts.config.Mismatches, "mismatches", 0, "allow this many mismatches when matching keys")
	f.BoolVar(&opts.config.Strict, "strict", false, "require a 'samples' header and DNA keys in the mapping file")
	f.StringVar(&opts.config.StatsFile, "stats", "", "optional: write run summary JSON here")
	f.StringVar(&opts.configFile, "configfile", "", "read configuration from `file` (YAML or JSON)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	f.StringVar(&opts.cpuprofile, "cpuprofile", "", "write cpu profile to `file`")
	f.StringVar(&opts.memprofile, "memprofile", "", "write memory profile to `file`")

	return cmd
}

// longFlagArgs rewrites flag package style long flags ("-configfile x",
// "-filter_barcodes") to the double-dash form pflag expects. Unknown names,
// shorthands and everything after "--" are left alone.
func longFlagArgs(cmd *cobra.Command, args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if len(arg) < 3 || arg[0] != '-' || arg[1] == '-' {
			continue
		}
		name := strings.SplitN(arg[1:], "=", 2)[0]
		if cmd.Flags().Lookup(name) != nil {
			out[i] = "-" + arg
		}
	}
	return out
}

// resolveConfig layers explicitly set flags over the config file.
func (o *options) resolveConfig(cmd *cobra.Command) (*Config, error) {
	config := o.config
	if o.configFile != "" {
		fileConfig, err := readConfigFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		f := cmd.Flags()
		overrides := map[string]func(){
			"alevin_fry_dir":      func() { fileConfig.AlevinFryDir = config.AlevinFryDir },
			"barcode_mapping_dir": func() { fileConfig.BarcodeMappingDir = config.BarcodeMappingDir },
			"mapping_file":        func() { fileConfig.MappingFile = config.MappingFile },
			"filter_barcodes":     func() { fileConfig.FilterBarcodes = config.FilterBarcodes },
			"key_length":          func() { fileConfig.KeyLength = config.KeyLength },
			"output_file":         func() { fileConfig.OutputFile = config.OutputFile },
			"mismatches":          func() { fileConfig.Mismatches = config.Mismatches },
			"strict":              func() { fileConfig.Strict = config.Strict },
			"stats":               func() { fileConfig.StatsFile = config.StatsFile },
		}
		for name, apply := range overrides {
			if f.Changed(name) {
				apply()
			}
		}
		config = *fileConfig
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.Sampling = nil
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func profiled(opts *options, logger *zap.SugaredLogger, fn func() error) error {
	if opts.cpuprofile != "" {
		f, err := os.Create(opts.cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	if err := fn(); err != nil {
		return err
	}

	if opts.memprofile != "" {
		f, err := os.Create(opts.memprofile)
		if err != nil {
			return fmt.Errorf("could not create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("could not write memory profile: %w", err)
		}
		logger.Debugw("wrote memory profile", "file", opts.memprofile)
	}
	return nil
}

// run loads both inputs, classifies the barcodes and only then touches
// the output file.
func run(config *Config, logger *zap.SugaredLogger) error {
	logger.Infow("Starting demux",
		"alevin_fry_dir", config.AlevinFryDir,
		"mapping_file", filepath.Join(config.BarcodeMappingDir, config.MappingFile),
		"filter_barcodes", config.FilterBarcodes)

	records, stats, err := demux(config, logger)
	if err != nil {
		return err
	}

	output := filepath.Join(config.BarcodeMappingDir, config.OutputFile)
	if err := writeSampleMapping(output, records); err != nil {
		return err
	}
	stats.Written = len(records)

	logger.Infow("done",
		"output", output,
		"barcodes", stats.Total,
		"matched", stats.Matched,
		"other", stats.Other,
		"written", stats.Written)
	samples := make([]string, 0, len(stats.PerSample))
	for sample := range stats.PerSample {
		samples = append(samples, sample)
	}
	sort.Strings(samples)
	for _, sample := range samples {
		logger.Debugw("sample", "name", sample, "barcodes", stats.PerSample[sample])
	}

	if config.StatsFile != "" {
		if err := writeStats(config.StatsFile, stats); err != nil {
			return err
		}
	}
	return nil
}
