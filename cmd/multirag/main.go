package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"multirag/internal/config"
	"multirag/internal/domain"
	"multirag/internal/logging"
	"multirag/internal/tui"
)

var (
	cfgPath string
	logLvl  string
)

var rootCmd = &cobra.Command{
	Use:           "multirag",
	Short:         "Ask questions about a document in English, Hindi, Turkish or French",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer one question about a document",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		question, _ := cmd.Flags().GetString("question")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		showSources, _ := cmd.Flags().GetBool("sources")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		app, err := assemble(cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		res, err := app.service.Ask(ctx, domain.QARequest{
			Path:           file,
			Question:       question,
			InputLanguage:  from,
			OutputLanguage: to,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
		if showSources {
			for i, src := range res.Sources {
				fmt.Fprintf(cmd.OutOrStdout(), "\n[%d] score=%.3f %s\n%s\n", i+1, src.Score, src.Chunk.ChunkID, src.Chunk.Text)
			}
		}
		return nil
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Ask questions interactively in a terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// the terminal belongs to the UI, so logs go to a file
		if cfg.Log.Output == "" || cfg.Log.Output == "stderr" || cfg.Log.Output == "stdout" {
			cfg.Log.Output = defaultLogFile()
		}
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		app, err := assemble(cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		m := tui.New(app.service, file, config.LanguageNames(cfg.Languages), cfg.Timeouts.Total())
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, name := range config.LanguageNames(cfg.Languages) {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", name, cfg.Languages[name])
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/multirag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLvl, "log-level", "", "Override the configured log level")

	askCmd.Flags().StringP("file", "f", "", "Document to ask about (.txt or .pdf)")
	askCmd.Flags().StringP("question", "q", "", "Question to answer")
	askCmd.Flags().String("from", domain.PivotLanguage, "Language of the question")
	askCmd.Flags().String("to", domain.PivotLanguage, "Language of the answer")
	askCmd.Flags().Bool("sources", false, "Print the retrieved chunks")
	_ = askCmd.MarkFlagRequired("file")
	_ = askCmd.MarkFlagRequired("question")

	tuiCmd.Flags().StringP("file", "f", "", "Document to ask about (.txt or .pdf)")
	_ = tuiCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(askCmd, tuiCmd, languagesCmd)
}

func loadConfig() (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, err
	}
	if logLvl != "" {
		cfg.Log.Level = logLvl
	}
	return cfg, nil
}

func defaultLogFile() string {
	return filepath.Join(os.TempDir(), "multirag", "multirag-"+time.Now().Format("20060102")+".log")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var f *domain.Failure
		if errors.As(err, &f) {
			fmt.Fprintln(os.Stderr, f.UserMessage())
			fmt.Fprintf(os.Stderr, "details: %v\n", f)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
