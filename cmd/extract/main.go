package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Oriol-1/modificador-pdf/contentstream"
	"github.com/Oriol-1/modificador-pdf/filters"
	"github.com/Oriol-1/modificador-pdf/layout"
	"github.com/Oriol-1/modificador-pdf/model"
	"github.com/Oriol-1/modificador-pdf/observability"
)

type featureSelection struct {
	Spans      bool
	Lines      bool
	Paragraphs bool
	Baselines  bool
	Spaces     bool
}

type options struct {
	streamPath string
	fontsPath  string
	outPath    string
	filterList string
	pageIndex  int
	verbose    bool
	features   featureSelection
}

type report struct {
	Page       *model.PageSpans        `json:"page"`
	Lines      []model.TextLine        `json:"lines,omitempty"`
	Paragraphs []model.TextParagraph   `json:"paragraphs,omitempty"`
	Baselines  *model.BaselineAnalysis `json:"baselines,omitempty"`
	Spaces     []*model.SpaceAnalysis  `json:"spaces,omitempty"`
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: extract [flags] <content-stream>\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.fontsPath, "fonts", "", "JSON file mapping resource names to font dictionaries")
	flag.StringVar(&opts.outPath, "out", "", "write the report here instead of stdout")
	flag.StringVar(&opts.filterList, "filters", "", "comma-separated decode filters applied first (e.g. FlateDecode)")
	flag.IntVar(&opts.pageIndex, "page", 0, "page index recorded on the emitted spans")
	flag.BoolVar(&opts.verbose, "v", false, "log parse progress")
	flag.BoolVar(&opts.features.Spans, "spans", true, "include raw spans")
	flag.BoolVar(&opts.features.Lines, "lines", true, "include aggregated lines")
	flag.BoolVar(&opts.features.Paragraphs, "paragraphs", true, "include paragraphs")
	flag.BoolVar(&opts.features.Baselines, "baselines", false, "include the baseline grid analysis")
	flag.BoolVar(&opts.features.Spaces, "spaces", false, "include per-line space analyses")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return opts, fmt.Errorf("expected exactly one content-stream file")
	}
	opts.streamPath = flag.Arg(0)
	return opts, nil
}

func run(opts options) error {
	ctx := context.Background()

	log := observability.Logger(observability.NopLogger{})
	if opts.verbose {
		l := logrus.New()
		l.SetLevel(logrus.DebugLevel)
		log = observability.NewLogrusLogger(l)
	}

	stream, err := os.ReadFile(opts.streamPath)
	if err != nil {
		return err
	}
	if opts.filterList != "" {
		names := strings.Split(opts.filterList, ",")
		stream, err = filters.Default().Decode(ctx, stream, names...)
		if err != nil {
			return fmt.Errorf("decoding stream: %w", err)
		}
	}

	fonts, err := loadFonts(opts.fontsPath)
	if err != nil {
		return err
	}

	cfg := contentstream.DefaultConfig()
	cfg.Logger = log
	proc := contentstream.NewProcessor(cfg)
	page, err := proc.Process(ctx, stream, opts.pageIndex, fonts)
	if err != nil {
		return err
	}
	for _, d := range page.Diagnostics {
		log.Warn("diagnostic",
			observability.String("kind", d.Kind.String()),
			observability.String("message", d.Message))
	}

	rep := report{}
	if opts.features.Spans {
		rep.Page = page
	}

	needLines := opts.features.Lines || opts.features.Paragraphs ||
		opts.features.Baselines || opts.features.Spaces
	if needLines {
		lcfg := layout.DefaultConfig()
		lcfg.Logger = log
		agg := layout.NewAggregator(lcfg)
		lines := agg.Lines(page)
		if opts.features.Lines {
			rep.Lines = lines
		}
		if opts.features.Paragraphs {
			rep.Paragraphs = agg.Paragraphs(page, lines)
		}
		if opts.features.Baselines {
			tracker := layout.NewBaselineTracker(layout.DefaultBaselineConfig())
			rep.Baselines = tracker.AnalyzePage(opts.pageIndex, lines)
		}
		if opts.features.Spaces {
			mapper := layout.NewSpaceMapper(layout.DefaultSpaceConfig())
			for i := range lines {
				rep.Spaces = append(rep.Spaces, mapper.AnalyzeLine(&lines[i], page))
			}
		}
	}

	return writeReport(opts.outPath, &rep)
}

func loadFonts(path string) (map[string]*model.FontInfo, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fonts map[string]*model.FontInfo
	if err := json.Unmarshal(data, &fonts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return fonts, nil
}

func writeReport(path string, rep *report) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
