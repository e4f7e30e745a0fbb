package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/invoice-extractor/internal/batch"
	"github.com/a3tai/invoice-extractor/internal/config"
	"github.com/a3tai/invoice-extractor/internal/export"
	"github.com/a3tai/invoice-extractor/internal/fetch"
	"github.com/a3tai/invoice-extractor/internal/ocr"
	"github.com/a3tai/invoice-extractor/internal/pdf"
	"github.com/a3tai/invoice-extractor/internal/service"
)

// Exit codes
const (
	exitOK      = 0
	exitNoData  = 1
	exitUsage   = 2
	exitFailure = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	output   string
	format   string
	discover bool
	verbose  bool
	cfg      *config.Config
}

// envFile is read before the environment, like the server does.
var envFile = config.EnvFile

func parseArgs(args []string, stderr io.Writer) (*options, []string, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}

	cfg := config.DefaultConfig()

	fs := pflag.NewFlagSet("invoice_export", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringP("output", "o", export.DefaultFilename, "Spreadsheet to write (.xlsx or .csv)")
	fs.String("format", "", "Output format when the output has no extension: xlsx, csv")
	fs.Bool("discover", false, "Follow PDF links when an argument is an HTML page URL")
	fs.BoolP("verbose", "v", false, "Print progress and debug logs")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.Duration("fetchtimeout", cfg.FetchTimeout, "Timeout for downloading invoices by URL")
	fs.String("ocr", cfg.OCREngine, "OCR engine for scanned pages: "+strings.Join(ocr.Engines(), ", "))
	fs.String("ocrlang", cfg.OCRLanguage, "OCR language (Tesseract code, e.g. eng, fra)")
	fs.String("azureendpoint", "", "Azure Computer Vision endpoint (ocr=azure)")
	fs.String("azurekey", "", "Azure Computer Vision key (ocr=azure)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: invoice_export [flags] <file|directory|url>...\n\n")
		fmt.Fprintf(stderr, "Extracts customs broker invoices into one summary spreadsheet.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// Environment variables share the prefix of the server, e.g. INVOICE_OCR.
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, nil, err
	}

	cfg.MaxFileSize = v.GetInt64("maxfilesize")
	cfg.FetchTimeout = v.GetDuration("fetchtimeout")
	cfg.OCREngine = strings.ToLower(v.GetString("ocr"))
	cfg.OCRLanguage = v.GetString("ocrlang")
	cfg.AzureEndpoint = v.GetString("azureendpoint")
	cfg.AzureKey = v.GetString("azurekey")
	if v.GetBool("verbose") {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	opts := &options{
		output:   v.GetString("output"),
		format:   v.GetString("format"),
		discover: v.GetBool("discover"),
		verbose:  v.GetBool("verbose"),
		cfg:      cfg,
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, errors.New("at least one file, directory or URL is required")
	}
	return opts, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, inputs, err := parseArgs(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	output, err := outputPath(opts.output, opts.format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: opts.cfg.SlogLevel()}))

	var progress []batch.Option
	if opts.verbose {
		progress = append(progress, batch.WithProgress(func(i, total int, name string) {
			fmt.Fprintf(stderr, "Parsing: %s (%d/%d)\n", name, i, total)
		}))
	}

	pipeline, err := service.NewPipeline(opts.cfg, logger, progress...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	sources := collectSources(ctx, pipeline.Fetcher, inputs, opts.discover, opts.cfg.MaxFileSize)

	result, runErr := pipeline.Processor.Run(ctx, sources)
	if runErr != nil {
		fmt.Fprintf(stderr, "Interrupted: %v\n", runErr)
	}
	if result == nil {
		return exitFailure
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(stderr, "⚠️  %s\n", w)
	}

	if result.Empty() {
		fmt.Fprintln(stderr, "❌ No data extracted from any file.")
		return exitNoData
	}

	if err := export.WriteFile(output, result.Records); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	fmt.Fprintf(stdout, "Done. %d row(s) extracted to %s\n", len(result.Records), output)
	if runErr != nil {
		return exitFailure
	}
	return exitOK
}

// outputPath applies the requested format to the output name.
func outputPath(output, format string) (string, error) {
	if output == "" {
		output = export.DefaultFilename
	}
	if format == "" {
		if filepath.Ext(output) == "" {
			output += export.FormatXLSX.Extension()
		}
		return output, nil
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	switch {
	case filepath.Ext(output) == "":
		return output + f.Extension(), nil
	case output == export.DefaultFilename:
		return f.Filename(), nil
	case export.FormatFromPath(output) != f:
		return "", fmt.Errorf("output %s does not match format %s", output, f)
	}
	return output, nil
}

// collectSources expands the arguments in order: directories become their
// PDFs sorted by path, URLs are downloaded and HTML pages are followed with
// discover. Arguments that cannot be used become warnings.
func collectSources(ctx context.Context, client *fetch.Client, inputs []string, discover bool, maxFileSize int64) []batch.Source {
	search := pdf.NewSearch(maxFileSize)

	var sources []batch.Source
	for _, in := range inputs {
		if isURL(in) {
			sources = append(sources, urlSources(ctx, client, in, discover)...)
			continue
		}

		info, err := os.Stat(in)
		if err != nil {
			sources = append(sources, batch.ErrorSource(filepath.Base(in), err))
			continue
		}
		if !info.IsDir() {
			sources = append(sources, batch.FileSource(in))
			continue
		}

		dirSources, err := batch.DirectorySources(search, in, "")
		if err != nil {
			sources = append(sources, batch.ErrorSource(in, err))
			continue
		}
		sources = append(sources, dirSources...)
	}
	return sources
}

func urlSources(ctx context.Context, client *fetch.Client, rawURL string, discover bool) []batch.Source {
	d, err := client.Get(ctx, rawURL)
	if err != nil {
		return []batch.Source{batch.ErrorSource(rawURL, err)}
	}

	switch {
	case d.IsPDF():
		return []batch.Source{batch.BytesSource(d.Name, d.Data)}
	case discover && d.IsHTML():
		links, err := fetch.Links(d)
		if err != nil {
			return []batch.Source{batch.ErrorSource(rawURL, err)}
		}
		if len(links) == 0 {
			return []batch.Source{batch.ErrorSource(rawURL, service.ErrNoPDFLinks)}
		}
		return batch.URLSources(client, links)
	default:
		return []batch.Source{batch.ErrorSource(rawURL, fmt.Errorf("%w (use --discover for pages)", pdf.ErrNotPDF))}
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
