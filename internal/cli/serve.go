package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/kitbash/pkg/observability"
	"github.com/matzehuels/kitbash/pkg/server"
)

// serveCommand creates the "serve" command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		noCache  bool
		readOnly bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project over HTTP",
		Long: `Serve the project for browsers and scripts:

  GET    /healthz
  GET    /api/v1/canvas
  GET    /api/v1/layers
  POST   /api/v1/layers          multipart upload, field "file"
  PATCH  /api/v1/layers/{id}     JSON: x, y, scale, visible, name, z
  DELETE /api/v1/layers/{id}
  GET    /api/v1/preview.png     zoom, pan_x, pan_y, width, height
  POST   /api/v1/export          scale, refresh; responds with a ZIP

Edits are saved to the project file unless --no-save is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = c.cfg.Server.Addr
			}
			p, err := c.openProject()
			if err != nil {
				return err
			}
			p.Session.SetZoom(c.cfg.PreviewZoom)

			runner, store, err := c.newRunner(cmd.Context(), noCache)
			if err != nil {
				return err
			}
			defer store.Close()

			observability.SetHTTPHooks(observability.LogHTTPHooks{Logger: c.Logger})
			srv := server.New(p, server.Options{
				Runner:         runner,
				Logger:         c.Logger,
				Limits:         c.cfg.Limits(),
				MaxUploadBytes: c.cfg.Server.MaxUploadBytes,
				Autosave:       !readOnly,
			})

			printInfo("Serving %s on %s", StyleValue.Render(p.Path), styleCommand.Render("http://"+addr))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the artifact cache")
	cmd.Flags().BoolVar(&readOnly, "no-save", false, "keep edits in memory only")

	return cmd
}
