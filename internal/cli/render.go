package cli

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/kitbash/pkg/archive"
	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/export"
	"github.com/matzehuels/kitbash/pkg/imageio"
	"github.com/matzehuels/kitbash/pkg/transform"
)

// previewOpts holds the flags of the preview command.
type previewOpts struct {
	output        string
	zoom          float64
	panX, panY    float64
	width, height int
	center        bool
	composite     bool
	selectLayer   string
}

// previewCommand creates the "preview" command.
func (c *CLI) previewCommand() *cobra.Command {
	var opts previewOpts

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the editor view to a PNG",
		Long: `Render what the editor shows: the canvas over a checkerboard, zoomed
and panned, with a white canvas border and the selected layer outlined.

--composite writes the plain composite at canvas size instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("zoom") {
				opts.zoom = c.cfg.PreviewZoom
			}
			return c.runPreview(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "preview.png", "output PNG path")
	cmd.Flags().Float64Var(&opts.zoom, "zoom", transform.DefaultZoom, "screen pixels per canvas pixel (0.1-32)")
	cmd.Flags().Float64Var(&opts.panX, "pan-x", 0, "canvas x at the left edge")
	cmd.Flags().Float64Var(&opts.panY, "pan-y", 0, "canvas y at the top edge")
	cmd.Flags().IntVar(&opts.width, "width", 0, "viewport width (default: canvas width × zoom)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "viewport height (default: canvas height × zoom)")
	cmd.Flags().BoolVar(&opts.center, "center", false, "centre the canvas in the viewport")
	cmd.Flags().BoolVar(&opts.composite, "composite", false, "write the plain composite at canvas size")
	cmd.Flags().StringVar(&opts.selectLayer, "select", "", "outline this layer")

	return cmd
}

func (c *CLI) runPreview(opts previewOpts) error {
	p, err := c.openProject()
	if err != nil {
		return err
	}
	s := p.Session
	prog := newProgress(c.Logger)

	var img image.Image
	if opts.composite {
		img = s.Composite()
	} else {
		s.SetZoom(opts.zoom)
		s.View.Pan = transform.Vec{X: opts.panX, Y: opts.panY}
		viewport := image.Pt(opts.width, opts.height)
		if viewport.X <= 0 {
			viewport.X = int(math.Ceil(float64(s.Canvas.Width) * s.View.Zoom))
		}
		if viewport.Y <= 0 {
			viewport.Y = int(math.Ceil(float64(s.Canvas.Height) * s.View.Zoom))
		}
		if limit := c.cfg.MaxArtifactSide; max(viewport.X, viewport.Y) > limit {
			return errors.New(errors.ErrCodeInvalidInput, "viewport %dx%d exceeds the %d pixel limit", viewport.X, viewport.Y, limit)
		}
		if opts.center {
			s.CenterView(viewport)
		}
		if opts.selectLayer != "" {
			id, err := resolveLayer(s, opts.selectLayer)
			if err != nil {
				return err
			}
			_ = s.Select(id)
		}
		img = s.Redraw(viewport)
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", opts.output)
	}
	if err := imageio.EncodePNG(f, img); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", opts.output)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", opts.output)
	}
	b := img.Bounds()
	prog.done("rendered preview", "size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()))
	printSuccess("Preview written")
	printFile(opts.output)
	return nil
}

// exportOpts holds the flags of the export command.
type exportOpts struct {
	scale   float64
	output  string
	dir     string
	noCache bool
	refresh bool
}

// exportCommand creates the "export" command.
func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every visible layer as a full-canvas PNG plus data.json",
		Long: `Export the project: one transparent PNG per visible layer, each the size
of the canvas times the export scale and containing only that layer, named
by z-index (000_body.png, 001_head.png, ...), plus data.json with every
layer's id, name, position, scale, z-index and visibility.

Artifacts are written as a ZIP archive (default kitbash_layers.zip) or,
with --dir, as loose files. Results are cached by content.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "" && opts.dir != "" {
				return errors.New(errors.ErrCodeInvalidInput, "--output and --dir are mutually exclusive")
			}
			if opts.output == "" && opts.dir == "" {
				opts.output = archive.DefaultZipName
			}
			return c.runExport(cmd.Context(), cmd.Flags().Changed("scale"), opts)
		},
	}

	cmd.Flags().Float64VarP(&opts.scale, "scale", "s", 0, "export scale (1-10, default: project setting)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "ZIP archive path (default "+archive.DefaultZipName+")")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "write loose files into this directory instead of a ZIP")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached artifacts but store the new ones")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, scaleSet bool, opts exportOpts) error {
	p, err := c.openProject()
	if err != nil {
		return err
	}
	scale := p.Session.ExportScale
	if scaleSet {
		scale = transform.ClampExportScale(opts.scale)
		if scale != opts.scale {
			printWarning("Export scale %g out of range, using %g", opts.scale, scale)
		}
	}
	req, err := p.Session.ExportRequest(scale, c.cfg.Limits())
	if err != nil {
		return err
	}

	runner, store, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer store.Close()

	size := req.Size()
	spinner := newSpinnerWithContext(ctx, os.Stderr,
		fmt.Sprintf("Exporting %d layers at %dx%d...", req.VisibleCount(), size.X, size.Y))
	spinner.Start()
	job := runner.Start(ctx, req, export.Options{Refresh: opts.refresh})
	res, err := job.Wait()
	if err != nil {
		spinner.StopWithError("Export failed")
		return err
	}

	spinner.SetMessage("Writing artifacts...")
	target := opts.output
	if opts.dir != "" {
		target = opts.dir
		err = res.WriteDir(opts.dir)
	} else {
		err = res.WriteZip(opts.output)
	}
	if err != nil {
		spinner.StopWithError("Writing artifacts failed")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Exported ×%g in %s", scale, res.Duration.Round(time.Millisecond)))
	printExportStats(res.Stats.Layers, res.Stats.Bitmaps, res.Stats.Bytes, res.CacheHit)
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	printFile(target)
	return nil
}
