package main

import (
	"fmt"

	"github.com/bsm/chunkfile"
	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat FILE",
	Short: "Print the file header",
	Long:  `Load a chunk file and print its header.`,
	Args:  cobra.ExactArgs(1),
	RunE:  statFunc,
}

func statFunc(cmd *cobra.Command, args []string) error {
	f, err := chunkfile.LoadFile(args[0], loaderOptions())
	if err != nil {
		return fmt.Errorf("could not load %s: %w", args[0], err)
	}
	defer f.Release()

	var chunks int
	_ = f.Walk(func(chunkfile.Chunk, int) error {
		chunks++
		return nil
	})

	hdr := f.Header()
	cmd.Printf("Magic:  %#08x\n", hdr.Magic)
	cmd.Printf("Size:   %d\n", hdr.Size)
	cmd.Printf("Roots:  %d\n", hdr.Count)
	cmd.Printf("Chunks: %d\n", chunks)
	return nil
}
