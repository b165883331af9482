package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/export"
	"github.com/matzehuels/kitbash/pkg/project"
	"github.com/matzehuels/kitbash/pkg/session"
	"github.com/matzehuels/kitbash/pkg/transform"
)

// initCommand creates the "init" command.
func (c *CLI) initCommand() *cobra.Command {
	var (
		width, height int
		background    string
		scale         float64
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new project file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bg, err := project.ParseColor(background)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("scale") {
				scale = c.defaultExportScale()
			}
			if err := transform.ValidateExportScale(scale); err != nil {
				return err
			}

			p, err := project.Init(c.projectPath, width, height)
			if err != nil {
				return err
			}
			p.Session.SetBackground(bg)
			if err := p.Session.SetExportScale(scale); err != nil {
				return err
			}
			if err := p.Save(); err != nil {
				return err
			}

			printSuccess("Created %s", StyleValue.Render(p.Path))
			printDetail("Canvas %dx%d, export scale ×%g", width, height, scale)
			printNextStep("Add layers", "kitbash add part.png")
			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", session.DefaultCanvasSide, "canvas width in pixels")
	cmd.Flags().IntVar(&height, "height", session.DefaultCanvasSide, "canvas height in pixels")
	cmd.Flags().StringVar(&background, "background", "", "preview background colour (#rrggbb[aa]), transparent if empty")
	cmd.Flags().Float64Var(&scale, "scale", transform.DefaultExportScale, "default export scale (1-10)")

	return cmd
}

// addCommand creates the "add" command.
func (c *CLI) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <image>...",
		Short: "Import images as new top layers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var added []string
			_, err := c.editProject(func(p *project.Project) error {
				for _, path := range args {
					id, err := p.Add(path)
					if err != nil {
						return err
					}
					v, _ := p.Session.Store.Get(id)
					added = append(added, fmt.Sprintf("%s (%dx%d, %s)", v.Name, v.Size().X, v.Size().Y, shortID(id)))
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, a := range added {
				printSuccess("Added %s", a)
			}
			return nil
		},
	}
}

// removeCommand creates the "remove" command.
func (c *CLI) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "remove <layer>...",
		Aliases:           []string{"rm"},
		Short:             "Delete layers",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completeLayers,
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed []string
			_, err := c.editProject(func(p *project.Project) error {
				for _, ref := range args {
					id, err := resolveLayer(p.Session, ref)
					if err != nil {
						return err
					}
					v, _ := p.Session.Store.Get(id)
					if err := p.Remove(id); err != nil {
						return err
					}
					removed = append(removed, v.Name)
				}
				return nil
			})
			if err != nil {
				return err
			}
			printSuccess("Removed %s", joinNames(removed))
			return nil
		},
	}
}

// layersCommand creates the "layers" command.
func (c *CLI) layersCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "layers",
		Aliases: []string{"ls"},
		Short:   "List the layer stack, top first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			s := p.Session
			fmt.Println(StyleTitle.Render(filepath.Base(p.Path)) + " " +
				StyleDim.Render(fmt.Sprintf("%dx%d · export ×%g", s.Canvas.Width, s.Canvas.Height, s.ExportScale)))
			views := s.Store.Snapshot()
			if len(views) == 0 {
				printInfo("No layers")
				return nil
			}
			sources := make(map[string]string, len(views))
			for _, v := range views {
				sources[v.ID], _ = p.Source(v.ID)
			}
			fmt.Println(layerTable(views, sources))
			return nil
		},
	}
}

// setCommand creates the "set" command.
func (c *CLI) setCommand() *cobra.Command {
	var (
		x, y, dx, dy, scale float64
		name                string
		show, hide, reset   bool
	)

	cmd := &cobra.Command{
		Use:   "set <layer>",
		Short: "Change a layer's position, scale, name or visibility",
		Long: `Change a layer's transform and attributes.

Positions are canvas pixels; fractional values are snapped to the nearest
pixel. --dx/--dy move relative to the current position, as a drag does.
--reset puts the layer back at the origin with scale 1 before other flags
are applied.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeLayers,
		RunE: func(cmd *cobra.Command, args []string) error {
			if show && hide {
				return errors.New(errors.ErrCodeInvalidInput, "--show and --hide are mutually exclusive")
			}
			flags := cmd.Flags()
			p, err := c.editProject(func(p *project.Project) error {
				st := p.Session.Store
				id, err := resolveLayer(p.Session, args[0])
				if err != nil {
					return err
				}
				if reset {
					if err := st.ResetTransform(id); err != nil {
						return err
					}
				}
				v, _ := st.Get(id)
				pos := transform.FromPoint(v.Position)
				if flags.Changed("x") {
					pos.X = x
				}
				if flags.Changed("y") {
					pos.Y = y
				}
				pos = pos.Add(transform.Vec{X: dx, Y: dy})
				var sc *float64
				if flags.Changed("scale") {
					sc = &scale
				}
				if err := st.SetTransform(id, &pos, sc); err != nil {
					return err
				}
				if flags.Changed("name") {
					if err := st.Rename(id, name); err != nil {
						return err
					}
				}
				if show || hide {
					if err := st.SetVisibility(id, show); err != nil {
						return err
					}
				}
				return p.Session.Select(id)
			})
			if err != nil {
				return err
			}
			id, _ := p.Session.Selected()
			v, _ := p.Session.Store.Get(id)
			printSuccess("%s at %d,%d scale ×%g%s", v.Name, v.Position.X, v.Position.Y, v.Scale, hiddenSuffix(v.Visible))
			return nil
		},
	}

	cmd.Flags().Float64Var(&x, "x", 0, "x position")
	cmd.Flags().Float64Var(&y, "y", 0, "y position")
	cmd.Flags().Float64Var(&dx, "dx", 0, "move horizontally by")
	cmd.Flags().Float64Var(&dy, "dy", 0, "move vertically by")
	cmd.Flags().Float64Var(&scale, "scale", 1, "layer scale factor (> 0)")
	cmd.Flags().StringVar(&name, "name", "", "rename the layer")
	cmd.Flags().BoolVar(&show, "show", false, "make the layer visible")
	cmd.Flags().BoolVar(&hide, "hide", false, "hide the layer")
	cmd.Flags().BoolVar(&reset, "reset", false, "reset position and scale first")

	return cmd
}

// reorderCommand creates the "reorder" command.
func (c *CLI) reorderCommand() *cobra.Command {
	var (
		to                    int
		up, down, top, bottom bool
		swap                  string
	)

	cmd := &cobra.Command{
		Use:               "reorder <layer>",
		Short:             "Move a layer up or down the stack",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeLayers,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 0
			for _, set := range []bool{cmd.Flags().Changed("to"), up, down, top, bottom, swap != ""} {
				if set {
					n++
				}
			}
			if n != 1 {
				return errors.New(errors.ErrCodeInvalidInput, "give exactly one of --to, --up, --down, --top, --bottom, --swap")
			}

			var z int
			var layerName string
			_, err := c.editProject(func(p *project.Project) error {
				st := p.Session.Store
				id, err := resolveLayer(p.Session, args[0])
				if err != nil {
					return err
				}
				switch {
				case up:
					err = st.Raise(id)
				case down:
					err = st.Lower(id)
				case top:
					err = st.Reorder(id, st.Len()-1)
				case bottom:
					err = st.Reorder(id, 0)
				case swap != "":
					var other string
					if other, err = resolveLayer(p.Session, swap); err == nil {
						err = st.Swap(id, other)
					}
				default:
					err = st.Reorder(id, to)
				}
				if err != nil {
					return err
				}
				v, _ := st.Get(id)
				z, layerName = v.Z, v.Name
				return nil
			})
			if err != nil {
				return err
			}
			printSuccess("%s is now at z %d", layerName, z)
			return nil
		},
	}

	cmd.Flags().IntVar(&to, "to", 0, "move to this z-index (clamped)")
	cmd.Flags().BoolVar(&up, "up", false, "move one step towards the front")
	cmd.Flags().BoolVar(&down, "down", false, "move one step towards the back")
	cmd.Flags().BoolVar(&top, "top", false, "move to the front")
	cmd.Flags().BoolVar(&bottom, "bottom", false, "move to the back")
	cmd.Flags().StringVar(&swap, "swap", "", "exchange places with another layer")

	return cmd
}

// importMetaCommand creates the "import-meta" command.
func (c *CLI) importMetaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-meta <data.json|archive.zip>",
		Short: "Apply exported layer metadata back onto the project",
		Long: `Restore layer positions, scales, order and visibility from a data.json
written by "kitbash export", or from an export archive containing one.
Records are matched to layers by ID, then by name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := readMetadata(args[0])
			if err != nil {
				return err
			}
			var (
				n         int
				unmatched export.Records
			)
			_, err = c.editProject(func(p *project.Project) error {
				var err error
				n, unmatched, err = p.Session.ApplyMetadata(recs)
				return err
			})
			if err != nil {
				return err
			}
			printSuccess("Restored %d of %d layers", n, len(recs))
			if len(unmatched) > 0 {
				names := make([]string, len(unmatched))
				for i, r := range unmatched {
					names[i] = r.Name
				}
				printWarning("No layer for %s", joinNames(names))
			}
			return nil
		},
	}
}

func readMetadata(path string) (export.Records, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "read %s", path)
		}
		return export.ReadArchiveMetadata(data)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "open %s", path)
	}
	defer f.Close()
	return export.ReadMetadata(f)
}

// resolveLayer finds a layer by full ID, unique ID prefix or unique name.
func resolveLayer(s *session.Session, ref string) (string, error) {
	if v, ok := s.Store.Get(ref); ok {
		return v.ID, nil
	}
	var byPrefix, byName []string
	for _, v := range s.Store.Snapshot() {
		if strings.HasPrefix(v.ID, ref) {
			byPrefix = append(byPrefix, v.ID)
		}
		if v.Name == ref {
			byName = append(byName, v.ID)
		}
	}
	for _, ids := range [][]string{byName, byPrefix} {
		switch len(ids) {
		case 0:
			continue
		case 1:
			return ids[0], nil
		default:
			return "", errors.New(errors.ErrCodeInvalidInput, "%q matches %d layers; use the layer ID", ref, len(ids))
		}
	}
	return "", errors.New(errors.ErrCodeLayerNotFound, "no layer %q", ref)
}

func hiddenSuffix(visible bool) string {
	if visible {
		return ""
	}
	return StyleDim.Render(" (" + iconHidden + ")")
}

// defaultExportScale returns the configured export scale, clamped to the
// valid range with a warning.
func (c *CLI) defaultExportScale() float64 {
	s := transform.ClampExportScale(c.cfg.ExportScale)
	if s != c.cfg.ExportScale {
		c.Logger.Warn("configured export scale out of range, clamped", "configured", c.cfg.ExportScale, "using", s)
	}
	return s
}
