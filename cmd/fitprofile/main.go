package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasjlepore/fitcodec/profile"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fitprofile: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "fitprofile",
		Short:         "Build and inspect FIT profile artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.AddCommand(newBuildCmd(stdout), newShowCmd(stdout))
	return root
}

func newBuildCmd(stdout io.Writer) *cobra.Command {
	var xlsx, out string
	cmd := &cobra.Command{
		Use:   "build --out PATH [--xlsx Profile.xlsx]",
		Short: "Compile the profile spreadsheet (or the built-in tables) into an artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				p   *profile.Profile
				err error
			)
			if xlsx != "" {
				p, err = profile.Load(xlsx)
			} else {
				p, err = profile.Builtin()
			}
			if err != nil {
				return err
			}
			if err := p.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Wrote %s (%d types, %d messages)\n", out, len(p.Types()), len(p.Messages()))
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "vendor profile spreadsheet")
	cmd.Flags().StringVar(&out, "out", "", "artifact output `PATH`")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newShowCmd(stdout io.Writer) *cobra.Command {
	var artifact string
	cmd := &cobra.Command{
		Use:   "show [--artifact PATH] [MESSAGE]",
		Short: "List the messages of a profile, or the fields of one message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				p   *profile.Profile
				err error
			)
			if artifact != "" {
				p, err = profile.Read(artifact)
			} else {
				p, err = profile.Builtin()
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			if len(args) == 0 {
				fmt.Fprintln(tw, "NUMBER\tMESSAGE\tFIELDS")
				for _, m := range p.Messages() {
					fmt.Fprintf(tw, "%d\t%s\t%d\n", m.Number, m.Name, len(m.Fields))
				}
				return tw.Flush()
			}
			m, err := lookupMessage(p, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s\n", m)
			fmt.Fprintln(tw, "NUMBER\tFIELD\tTYPE\tSCALE\tOFFSET\tUNITS\tNOTES")
			for _, f := range m.Fields {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%g\t%s\t%s\n", f.Number, f.Name, f.Type.Name, f.Scale, f.Offset, f.Units, notes(f))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&artifact, "artifact", "", "profile artifact `PATH` (default: built-in tables)")
	return cmd
}

// lookupMessage accepts a message name or a global message number.
func lookupMessage(p *profile.Profile, arg string) (*profile.Message, error) {
	if n, err := strconv.ParseUint(arg, 10, 16); err == nil {
		return p.MessageByNumber(uint16(n)), nil
	}
	return p.MessageByName(arg)
}

func notes(f *profile.Field) string {
	var s string
	add := func(part string) {
		if s != "" {
			s += ","
		}
		s += part
	}
	if f.Array {
		add("array")
	}
	if f.Accumulate {
		add("accumulate")
	}
	if len(f.Components) > 0 {
		add(fmt.Sprintf("components=%d", len(f.Components)))
	}
	if len(f.Subfields) > 0 {
		add(fmt.Sprintf("subfields=%d", len(f.Subfields)))
	}
	return s
}
