package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"diaglog/src/hexnrc"
	"diaglog/src/mcp"
)

func newDecodeCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Decode a hex payload and guess its CAN/UDS fields",
		Example: `  diaglog decode 7E8 03 7F 31 78
  diaglog decode 0x22,0xF1,0x90`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := loadReferences(a.cfg.Reference)
			if err != nil {
				return err
			}
			result, err := mcp.Decode(hexnrc.NewDecoder(refs), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return printDecoded(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func printDecoded(w io.Writer, r mcp.DecodeResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(r.Bytes) > 0 {
		fmt.Fprintln(tw, "HEX\tDEC\tASCII")
		for _, b := range r.Bytes {
			ascii := "."
			if b.ASCII != nil {
				ascii = *b.ASCII
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Hex, b.Decimal, ascii)
		}
		fmt.Fprintln(tw)
	}
	if r.Frame != nil {
		fmt.Fprintln(tw, "FIELD\tOFFSET\tHEX\tMEANING")
		for _, f := range r.Frame.Fields {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.Name, f.Offset, f.Hex, f.Meaning)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\n%s\n", r.Frame.Note)
		return err
	}
	return tw.Flush()
}

func newNRCCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "nrc <code>",
		Short: "Explain a UDS negative response code",
		Example: `  diaglog nrc 78
  diaglog nrc "7F 27 35"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := hexnrc.ParseCode(strings.Join(args, " "))
			if err != nil {
				return err
			}
			refs, err := loadReferences(a.cfg.Reference)
			if err != nil {
				return err
			}
			exp := hexnrc.NewDecoder(refs).ExplainNRC(code)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), exp)
			}
			return printNRC(cmd.OutOrStdout(), exp)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func printNRC(w io.Writer, exp hexnrc.NRCExplanation) error {
	fmt.Fprintf(w, "NRC 0x%s %s\n", exp.Code, exp.Name)
	fmt.Fprintf(w, "  %s\n", exp.Meaning)
	if exp.Category != "" {
		fmt.Fprintf(w, "  category: %s\n", exp.Category)
	}
	if exp.Benign {
		fmt.Fprintln(w, "  benign: expected during normal operation")
	}
	if !exp.Documented {
		_, err := fmt.Fprintln(w, "  not in the reference tables")
		return err
	}
	return nil
}
