package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/guiyumin/vscribe/internal/core/transcriber"
	"github.com/spf13/cobra"
)

var modelsDir string

// modelsCmd lists whisper.cpp models
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List and download whisper.cpp models",
	Long: `List the ggml models known to the whisper provider and which of them are
already downloaded.

Models are stored in ~/.config/vscribe/models/ unless --models-dir or
transcription.models_dir says otherwise.

Examples:
  vscribe models
  vscribe models download large-v3-turbo`,
	Args: cobra.NoArgs,
	Run:  runModels,
}

// modelsDownloadCmd downloads a model
var modelsDownloadCmd = &cobra.Command{
	Use:   "download <model>",
	Short: "Download a whisper.cpp model from Hugging Face",
	Args:  cobra.ExactArgs(1),
	Run:   runModelsDownload,
}

func init() {
	modelsCmd.PersistentFlags().StringVar(&modelsDir, "models-dir", "", "models directory")
	modelsCmd.AddCommand(modelsDownloadCmd)
	rootCmd.AddCommand(modelsCmd)
}

func modelManager() *transcriber.ModelManager {
	dir := modelsDir
	if dir == "" {
		if cfg, err := loadConfig(); err == nil {
			dir = cfg.Transcription.ModelsDir
		}
	}
	if dir == "" {
		d, err := transcriber.DefaultModelsDir()
		if err != nil {
			fatal(err)
		}
		dir = d
	}
	return transcriber.NewModelManager(dir)
}

func runModels(cmd *cobra.Command, args []string) {
	mm := modelManager()

	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	sizeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray

	fmt.Println(headerStyle.Render("Whisper models:"))
	fmt.Println()
	for _, m := range mm.List() {
		mark := " "
		if m.Downloaded {
			mark = okMark
		}
		fmt.Printf("  %s %s %s  %s\n",
			mark,
			nameStyle.Render(fmt.Sprintf("%-16s", m.Name)),
			sizeStyle.Render(fmt.Sprintf("%8s", m.Size)),
			m.Description,
		)
	}
	fmt.Println()
	fmt.Printf("Models directory: %s\n", mm.Dir())
	fmt.Printf("%s\n", hintStyle.Render("Download one with: vscribe models download <name>"))
}

func runModelsDownload(cmd *cobra.Command, args []string) {
	name := args[0]
	model := transcriber.GetModel(name)
	if model == nil {
		fmt.Fprintf(os.Stderr, "Error: unknown model '%s'\n\n", name)
		fmt.Fprintln(os.Stderr, "Available models:")
		for _, m := range transcriber.WhisperModels {
			fmt.Fprintf(os.Stderr, "  %-16s (%s) - %s\n", m.Name, m.Size, m.Description)
		}
		os.Exit(exitFatal)
	}

	mm := modelManager()
	if mm.IsDownloaded(name) {
		fmt.Printf("Model '%s' is already downloaded.\n", model.Name)
		fmt.Printf("Location: %s\n", mm.ModelPath(name))
		return
	}

	fmt.Printf("Downloading %s (%s)\n", model.Name, model.Size)
	path, err := mm.EnsureModel(context.Background(), name)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%s Download complete\n", okMark)
	fmt.Printf("Location: %s\n", path)
}
