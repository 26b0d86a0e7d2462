package main

import (
	"fmt"

	"github.com/spf13/cobra"

	macho "github.com/appsworld/tbd-macho"
	"github.com/appsworld/tbd-macho/types"
)

func (a *app) headerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "header <file>",
		Short: "Print the normalized Mach-O header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(args[0], macho.ValidateImage)
			if err != nil {
				return err
			}
			defer c.Close()

			order := "little"
			if c.IsBigEndian() {
				order = "big"
			}
			fmt.Fprint(a.out, c.Header().String())
			fmt.Fprintf(a.out, "Endian        = %s\n", order)
			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Open the image with a validation mode and report the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := macho.ParseValidationMode(a.v.GetString("mode"))
			if err != nil {
				return err
			}
			c, err := a.open(args[0], mode)
			if err != nil {
				return err
			}
			defer c.Close()
			fmt.Fprintf(a.out, "%s: ok (%s)\n", args[0], mode)
			return nil
		},
	}
	cmd.Flags().String("mode", "image", "validation mode (image, library, dylib)")
	if err := a.v.BindPFlag("mode", cmd.Flags().Lookup("mode")); err != nil {
		panic(err)
	}
	return cmd
}

func (a *app) findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <file> <LC_NAME|0xNN>",
		Short: "Print the first load command of a kind",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseLoadCmd(args[1])
			if err != nil {
				return err
			}
			c, err := a.open(args[0], macho.ValidateImage)
			if err != nil {
				return err
			}
			defer c.Close()

			lc, ok, err := c.FindFirstOfLoadCommand(kind)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(a.out, "%s: not found\n", kind)
				return nil
			}
			fmt.Fprintf(a.out, "%s file_off=%#x\n", lc, lc.FileOffset())
			return nil
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <file>",
		Short: "List every load command in table order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(args[0], macho.ValidateImage)
			if err != nil {
				return err
			}
			defer c.Close()

			lcs, err := c.LoadCommands()
			if err != nil {
				return err
			}
			for i, lc := range lcs {
				fmt.Fprintf(a.out, "%3d %s\n", i, lc)
			}
			return nil
		},
	}
}

func (a *app) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Report whether the image is a library or dynamic library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(args[0], macho.ValidateImage)
			if err != nil {
				return err
			}
			defer c.Close()

			fmt.Fprintf(a.out, "library:         %t\n", c.IsLibrary())
			fmt.Fprintf(a.out, "dynamic library: %t\n", c.IsDynamicLibrary())
			if d, err := c.DylibID(); err == nil {
				fmt.Fprintf(a.out, "id:              %s\n", d)
			}
			return nil
		},
	}
}
