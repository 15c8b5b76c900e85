package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bsm/chunkfile"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const previewSize = 8

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print all chunks",
	Long:  `Load a chunk file and print every chunk in depth-first order.`,
	Args:  cobra.ExactArgs(1),
	RunE:  dumpFunc,
}

func dumpFunc(cmd *cobra.Command, args []string) error {
	f, err := chunkfile.LoadFile(args[0], loaderOptions())
	if err != nil {
		return fmt.Errorf("could not load %s: %w", args[0], err)
	}
	defer f.Release()

	return renderDump(cmd.OutOrStdout(), f)
}

func renderDump(w io.Writer, f *chunkfile.Forest) error {
	out := tablewriter.NewWriter(w)
	out.SetHeader([]string{"Offset", "Tag", "Children", "Size", "Payload"})
	out.SetAlignment(tablewriter.ALIGN_LEFT)
	out.SetAutoWrapText(false)

	err := f.Walk(func(c chunkfile.Chunk, depth int) error {
		out.Append([]string{
			strconv.FormatInt(c.Offset(), 10),
			strings.Repeat("  ", depth) + fmt.Sprintf("%#08x", c.Tag()),
			strconv.Itoa(c.ChildCount()),
			strconv.Itoa(c.PayloadSize()),
			preview(c.Payload()),
		})
		return nil
	})
	if err != nil {
		return err
	}

	out.Render()
	return nil
}

func preview(p []byte) string {
	if len(p) > previewSize {
		return hex.EncodeToString(p[:previewSize]) + "..."
	}
	return hex.EncodeToString(p)
}
