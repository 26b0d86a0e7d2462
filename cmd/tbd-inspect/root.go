package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	macho "github.com/appsworld/tbd-macho"
	"github.com/appsworld/tbd-macho/internal/config"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	out     io.Writer
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, v: config.New()}

	root := &cobra.Command{
		Use:          "tbd-inspect",
		Short:        "Inspect the header and load commands of a Mach-O image",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			macho.SetDefaultLogger(cfg.Logger())
			return nil
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./tbd-inspect.yaml)")
	pf.Int64("base", 0, "offset of the image inside the file")
	pf.Int64("size", 0, "length of the image window (0 means the rest of the file)")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.Uint64("max-cache-size", 0, "largest cache allocation in bytes (0 means the library default)")

	for key, flag := range map[string]string{
		"window.base":    "base",
		"window.size":    "size",
		"log.level":      "log-level",
		"cache.max_size": "max-cache-size",
	} {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind %s: %v", flag, err))
		}
	}

	root.AddCommand(
		a.headerCmd(),
		a.validateCmd(),
		a.findCmd(),
		a.listCmd(),
		a.classifyCmd(),
	)
	return root
}

// open binds a fresh container to name using the configured window and cache limit.
// The returned container holds its own reference to the file; closing it releases the file.
func (a *app) open(name string, mode macho.ValidationMode) (*macho.Container, error) {
	f, err := macho.OpenSharedFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base, size := a.cfg.Window.Base, a.cfg.Window.Size
	if size == 0 {
		total, err := f.Size()
		if err != nil {
			return nil, err
		}
		size = total - base
	}

	c := &macho.Container{MaxCacheSize: a.cfg.Cache.MaxSize}
	if err := c.OpenWithMode(f, base, size, mode); err != nil {
		c.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}
