package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/proctex/internal/wordcount"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var countCmd = &cobra.Command{
	Use:   "count <file>",
	Short: "Count whole-word occurrences in a text file",
	Long:  `Count case-sensitive whole-word occurrences of --word in a file, scanning lines in parallel.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)

	countCmd.Flags().String("word", "", "Word to count (required)")
	countCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"count.word", "word"},
		{"count.workers", "workers"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, countCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runCount(cmd *cobra.Command, args []string) error {
	word := viper.GetString("count.word")
	workers := viper.GetInt("count.workers")

	if logger == nil {
		initLogging()
	}

	if word == "" {
		return fmt.Errorf("--word is required")
	}

	n, err := wordcount.CountFile(args[0], word, workers)
	if err != nil {
		return err
	}

	logger.Debug("Word count finished", "file", args[0], "word", word, "count", n)
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}
