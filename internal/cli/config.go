package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/kitbash/pkg/config"
)

// configCommand creates the "config" command.
func (c *CLI) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			cfg := c.cfg
			printKeyValue("config file", path)
			printKeyValue("export_scale", strconv.FormatFloat(cfg.ExportScale, 'g', -1, 64))
			printKeyValue("max_artifact_side", strconv.Itoa(cfg.MaxArtifactSide))
			printKeyValue("max_export_pixels", strconv.FormatInt(cfg.MaxExportPixels, 10))
			printKeyValue("preview_zoom", strconv.FormatFloat(cfg.PreviewZoom, 'g', -1, 64))
			printKeyValue("cache.backend", cfg.Cache.Backend)
			printKeyValue("cache.dir", cfg.Cache.Dir)
			printKeyValue("cache.ttl", cfg.Cache.TTL.String())
			if cfg.Cache.Backend == config.BackendRedis {
				printKeyValue("cache.redis_addr", cfg.Cache.RedisAddr)
				printKeyValue("cache.redis_db", strconv.Itoa(cfg.Cache.RedisDB))
			}
			printKeyValue("server.addr", cfg.Server.Addr)
			printKeyValue("server.max_upload", formatBytes(int(cfg.Server.MaxUploadBytes)))
			return nil
		},
	}
}
