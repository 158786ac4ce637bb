package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/refscan/internal/config"
)

var (
	vocabYAML     bool
	vocabFlagFile string
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Print the vocabulary of type names",
	Long: `Print the vocabulary that scans search for, one name per line, in the
order it is matched. With --yaml the output is a vocabulary file that can be
edited and passed back with --vocab-file.`,
	Args: cobra.NoArgs,
	RunE: runVocab,
}

func init() {
	vocabCmd.Flags().BoolVar(&vocabYAML, "yaml", false, "Output as a vocabulary file")
	vocabCmd.Flags().StringVar(&vocabFlagFile, "vocab-file", "", "YAML file with the vocabulary to print")
	rootCmd.AddCommand(vocabCmd)
}

func runVocab(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("vocab-file") {
		cfg.VocabularyFile = vocabFlagFile
	}

	vocab, err := cfg.LoadVocabulary()
	if err != nil {
		return fmt.Errorf("loading vocabulary: %w", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case flagJSON:
		return writeJSON(out, map[string]any{"names": vocab.Names()})
	case vocabYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(vocab); err != nil {
			return err
		}
		return enc.Close()
	default:
		for _, name := range vocab.Names() {
			fmt.Fprintln(out, name)
		}
		return nil
	}
}
