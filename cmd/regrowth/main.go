// Command regrowth runs one dataset build stage in the foreground.
//
//	regrowth <stage> [flags]
//
// Every stage accepts -params with a JSON object (or @file) of stage
// parameters; the stage flags override keys of that object.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
	"github.com/jengzang/regrowth-dataset/internal/pipeline/stages"

	_ "github.com/jengzang/regrowth-dataset/internal/gdalio"
)

// stageFlag maps a command-line flag to a params key
type stageFlag struct {
	name  string
	key   string
	kind  string // string, float, int, bool, list
	usage string
}

var stageFlags = map[string][]stageFlag{
	stages.IngestStage: {
		{"sources", "sources_file", "string", "sources manifest"},
		{"only", "sources", "list", "comma-separated source names to ingest"},
		{"boundary", "boundary", "string", "boundary dataset"},
		{"out", "output_dir", "string", "output directory"},
		{"format", "format", "string", "output extension"},
	},
	stages.MergeStage: {
		{"in", "inputs", "list", "comma-separated collection files or globs"},
		{"out", "output", "string", "merged output file"},
		{"sources", "sources_file", "string", "sources manifest with a merge section"},
		{"max-year", "max_year", "int", "exclusive planting year cap"},
		{"exclude", "exclude_sources", "list", "comma-separated sources to drop"},
		{"crs", "merge_crs", "string", "CRS of the merged output"},
	},
	stages.SampleStage: {
		{"in", "input", "string", "merged collection"},
		{"resolution", "resolution", "float", "grid cell size in CRS units"},
		{"inter-area", "inter_area", "float", "minimum single-polygon intersection area"},
		{"crs", "target_crs", "string", "reproject the input first"},
		{"save-grid", "save_grid", "bool", "also write the retained cells"},
		{"out", "output_dir", "string", "output directory"},
		{"format", "format", "string", "output extension"},
	},
	stages.RasterizeStage: {
		{"in", "input", "string", "polygon collection"},
		{"pixel-size", "pixel_size", "float", "pixel size in CRS units"},
		{"all-touched", "all_touched", "bool", "burn every pixel the boundary touches"},
		{"out", "output_dir", "string", "output directory"},
	},
	stages.DownloadStage: {
		{"points", "points", "string", "sampling points file"},
		{"out", "output_dir", "string", "chip directory"},
		{"suffix", "suffix", "string", "chip file suffix"},
		{"resolution", "resolution", "float", "chip pixel size"},
		{"url", "export_url", "string", "image export endpoint"},
		{"workers", "workers", "int", "concurrent downloads"},
		{"limit", "limit", "int", "maximum number of points"},
	},
	stages.CropStage: {
		{"in", "input_dir", "string", "downloaded chips"},
		{"out", "output_dir", "string", "cropped chips"},
		{"size", "size", "int", "reference crop size in pixels"},
		{"sensors", "sensors", "list", "comma-separated sensors to align"},
	},
	stages.SplitStage: {
		{"in", "chip_dir", "string", "cropped chips"},
		{"out", "output_dir", "string", "dataset directory"},
		{"train-fraction", "train_fraction", "float", "fraction of masks used for training"},
		{"sensors", "sensors", "list", "comma-separated sensors to copy"},
		{"seed", "seed", "int", "random seed"},
	},
	stages.BuildStage: {},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	flags, ok := stageFlags[name]
	if !ok || !pipeline.IsRegistered(name) {
		fmt.Fprintf(os.Stderr, "unknown stage %q\n", name)
		usage()
		os.Exit(2)
	}

	params, err := parseParams(name, flags, os.Args[2:])
	if err != nil {
		log.Fatal(err)
	}

	cfg := config.Load()
	stage := pipeline.GetStage(name, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.Execute(ctx, stage, params)
	if err != nil {
		log.Fatal(err)
	}
	out, err := json.MarshalIndent(summary.Result, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}

func parseParams(name string, flags []stageFlag, args []string) (pipeline.Params, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	raw := fs.String("params", "", "stage params as a JSON object, or @file")
	values := make(map[string]*string, len(flags))
	bools := make(map[string]*bool)
	for _, f := range flags {
		if f.kind == "bool" {
			bools[f.name] = fs.Bool(f.name, false, f.usage)
			continue
		}
		values[f.name] = fs.String(f.name, "", f.usage)
	}
	if err := fs.Parse(args); err != nil {
		return pipeline.Params{}, err
	}

	params := map[string]interface{}{}
	if *raw != "" {
		data := []byte(*raw)
		if path, ok := strings.CutPrefix(*raw, "@"); ok {
			var err error
			if data, err = os.ReadFile(path); err != nil {
				return pipeline.Params{}, fmt.Errorf("failed to read params: %w", err)
			}
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return pipeline.Params{}, fmt.Errorf("invalid -params: %w", err)
		}
	}

	byName := make(map[string]stageFlag, len(flags))
	for _, f := range flags {
		byName[f.name] = f
	}
	var convErr error
	fs.Visit(func(fl *flag.Flag) {
		f, ok := byName[fl.Name]
		if !ok || convErr != nil {
			return
		}
		if f.kind == "bool" {
			params[f.key] = *bools[f.name]
			return
		}
		v, err := convert(f, *values[f.name])
		if err != nil {
			convErr = err
			return
		}
		params[f.key] = v
	})
	if convErr != nil {
		return pipeline.Params{}, convErr
	}
	return pipeline.NewParams(params)
}

func convert(f stageFlag, s string) (interface{}, error) {
	switch f.kind {
	case "float", "int":
		n := json.Number(s)
		if _, err := n.Float64(); err != nil {
			return nil, fmt.Errorf("-%s: %q is not a number", f.name, s)
		}
		return n, nil
	case "list":
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	return s, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: regrowth <stage> [-params JSON|@file] [flags]")
	fmt.Fprintln(os.Stderr, "stages: ingest, merge, sample, rasterize, download, crop, split, build")
}
