package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
)

var optionsCmd = &cobra.Command{
	Use:   "options [flags] [input]",
	Short: "Dump the translation options of every input sentence",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := loadEngine(cmd)
		if err != nil {
			return err
		}
		inputPath := ""
		if len(args) == 1 {
			inputPath = args[0]
		}
		lines, err := readLinesFrom(inputPath)
		if err != nil {
			return err
		}

		out := bufio.NewWriter(cmd.OutOrStdout())
		for i, line := range lines {
			source := engine.Vocab.Parse(line)
			set := engine.Featurizers.ForSentence(source)
			opts := engine.Generator.Options(source, set, engine.Scorer)
			fmt.Fprintf(out, "# sentence %d: %d options\n", i, len(opts))
			for _, o := range opts {
				fmt.Fprintln(out, o.Format(engine.Vocab))
			}
		}
		return out.Flush()
	},
}

func init() {
	addModelFlags(optionsCmd)
}
