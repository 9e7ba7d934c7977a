package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/bodygraph/internal/bodygraph"
	"github.com/talgya/bodygraph/internal/render"
	"github.com/talgya/bodygraph/internal/svg"
	"github.com/talgya/bodygraph/internal/watch"
)

// Output formats of the render command.
const (
	formatSVG   = "svg"
	formatScene = "json"

	sceneSuffix = ".scene.json"
)

type renderOptions struct {
	out    string // Output directory; empty = next to the input; "-" = stdout
	format string
	size   string
	width  int
	jobs   int
	watch  bool
}

func renderCmd(a *app) *cobra.Command {
	opts := renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <chart.json|glob>...",
		Short: "Render chart files to SVG or scene JSON",
		Long: `Render one or more chart files. Arguments may be doublestar globs
such as "charts/**/*.json". Files are rendered concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRenderer(a, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			files, err := expandInputs(args)
			if err != nil {
				return err
			}
			if opts.out == "-" && len(files) != 1 {
				return fmt.Errorf("--out - needs exactly one input, got %d", len(files))
			}

			err = r.renderAll(cmd.Context(), files)
			if !opts.watch {
				return err
			}
			if err != nil {
				slog.Warn("initial render incomplete", "error", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return r.watch(ctx, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", "", `Output directory ("-" for stdout)`)
	f.StringVarP(&opts.format, "format", "f", formatSVG, "Output format: svg or json (scene)")
	f.StringVar(&opts.size, "size", "screen", "SVG size preset: screen or export")
	f.IntVar(&opts.width, "width", 0, "SVG width in pixels; overrides --size")
	f.IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "Files rendered in parallel")
	f.BoolVarP(&opts.watch, "watch", "w", false, "Re-render inputs when they change")
	return cmd
}

type renderer struct {
	comp   *render.Compositor
	opts   renderOptions
	width  int
	stdout io.Writer
}

func newRenderer(a *app, opts renderOptions, stdout io.Writer) (*renderer, error) {
	r := &renderer{comp: render.New(a.cfg.Render.Theme), opts: opts, stdout: stdout}

	switch opts.format {
	case formatSVG, formatScene:
	default:
		return nil, fmt.Errorf("format must be svg or json, got %q", opts.format)
	}

	switch {
	case opts.width > 0:
		r.width = opts.width
	case opts.size == "screen":
		r.width = a.cfg.Render.ScreenWidth
	case opts.size == "export":
		r.width = a.cfg.Render.ExportWidth
	default:
		return nil, fmt.Errorf("size must be screen or export, got %q", opts.size)
	}

	if r.opts.jobs < 1 {
		r.opts.jobs = 1
	}
	return r, nil
}

// expandInputs resolves globs and plain paths into a sorted, de-duplicated
// file list. A glob that matches nothing is an error.
func expandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, arg := range args {
		matches := []string{arg}
		if isGlob(arg) {
			var err error
			matches, err = doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no charts match %q", arg)
			}
		}
		for _, m := range matches {
			if isGlob(arg) && isSceneOutput(m) {
				continue
			}
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	slices.Sort(files)
	return files, nil
}

func isGlob(arg string) bool {
	return strings.ContainsAny(arg, "*?[{")
}

// isSceneOutput reports files written by --format json, which globs
// over the input directory would otherwise pick up as charts.
func isSceneOutput(path string) bool {
	return strings.HasSuffix(path, sceneSuffix)
}

func (r *renderer) renderAll(ctx context.Context, files []string) error {
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.jobs)

	for _, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return r.renderFile(path)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("render complete", "files", len(files), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (r *renderer) renderFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read chart: %w", err)
	}
	var chart bodygraph.Chart
	if err := json.Unmarshal(data, &chart); err != nil {
		return fmt.Errorf("parse chart %s: %w", path, err)
	}

	res := bodygraph.Resolve(chart)
	scene := r.comp.Compose(res)

	var buf bytes.Buffer
	switch r.opts.format {
	case formatScene:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		err = enc.Encode(scene)
	default:
		err = svg.Encode(&buf, scene, svg.Options{Width: r.width})
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if r.opts.out == "-" {
		_, err := r.stdout.Write(buf.Bytes())
		return err
	}

	dest := r.outputPath(path)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	slog.Info("rendered",
		"chart", path,
		"out", dest,
		"channels", len(res.Channels),
		"centers", len(res.Centers),
		"dropped", res.Dropped,
		"size", humanize.Bytes(uint64(buf.Len())))
	return nil
}

// outputPath maps charts/alice.json to <out>/alice.svg (or alice.scene.json).
func (r *renderer) outputPath(input string) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if r.opts.format == formatScene {
		name += sceneSuffix
	} else {
		name += ".svg"
	}
	dir := r.opts.out
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, name)
}

func (r *renderer) watch(ctx context.Context, args []string) error {
	var opts watch.Options
	for _, arg := range args {
		if isGlob(arg) {
			opts.Patterns = append(opts.Patterns, arg)
		} else {
			opts.Files = append(opts.Files, arg)
		}
	}
	w, err := watch.New(opts)
	if err != nil {
		return err
	}
	slog.Info("watching for changes", "inputs", len(args))
	return w.Run(ctx, func(path string) {
		if isSceneOutput(path) {
			return
		}
		if err := r.renderFile(path); err != nil {
			slog.Error("render failed", "chart", path, "error", err)
		}
	})
}
