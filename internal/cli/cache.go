package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/kitbash/pkg/cache"
	"github.com/matzehuels/kitbash/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the export artifact cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached export and preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.newCache(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer store.Close()

			cleared, err := cache.Clear(cmd.Context(), store)
			if err != nil {
				return err
			}
			if !cleared || c.cfg.Cache.Backend == config.BackendNone {
				printInfo("Caching is disabled")
				return nil
			}
			printSuccess("Cleared the %s cache", c.cfg.Cache.Backend)
			if fc, ok := store.(*cache.FileCache); ok {
				printDetail("Directory: %s", fc.Dir())
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache location",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch c.cfg.Cache.Backend {
			case config.BackendRedis:
				fmt.Printf("redis://%s/%d\n", c.cfg.Cache.RedisAddr, c.cfg.Cache.RedisDB)
			case config.BackendNone:
				printInfo("Caching is disabled")
			default:
				fmt.Println(c.cfg.Cache.Dir)
			}
			return nil
		},
	}
}
