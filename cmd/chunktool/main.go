package main

import (
	"os"

	"github.com/spf13/cobra"
)

var command = &cobra.Command{
	Use:           "chunktool",
	Short:         "Chunk file tool",
	Long:          `Chunktool inspects chunk files and writes sample forests.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// use stdout as default output for cmd.Print()
	command.SetOut(os.Stdout)
	bindFlags(command)
	command.AddCommand(
		statCmd,
		dumpCmd,
		sampleCmd,
	)
}

func main() {
	if err := command.Execute(); err != nil {
		command.PrintErrln(err)
		os.Exit(1)
	}
}
