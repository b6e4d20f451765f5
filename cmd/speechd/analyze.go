package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	appconfig "github.com/fedutinova/speechcoach/internal/config"
	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/fedutinova/speechcoach/internal/storage"
	"github.com/fedutinova/speechcoach/internal/workers"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAnalyzeCommand(config func() appconfig.Config) *cobra.Command {
	var (
		transcriptFile string
		contextTag     string
		language       string
		showProgress   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <wav>",
		Short: "Analyze one recording in-process and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config()

			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if _, err := os.Stat(absPath); err != nil {
				return fmt.Errorf("inspect audio: %w", err)
			}

			var transcript string
			if transcriptFile != "" {
				data, err := os.ReadFile(transcriptFile)
				if err != nil {
					return fmt.Errorf("read transcript: %w", err)
				}
				transcript = string(data)
			}

			files, err := storage.NewLocalStorage(filepath.Dir(absPath), "")
			if err != nil {
				return err
			}
			profiles, err := loadProfiles(cfg)
			if err != nil {
				return err
			}
			handler, err := workers.NewAnalysisHandler(newRunner(cfg, files, profiles), cfg.RequiredStages)
			if err != nil {
				return err
			}

			metadata := map[string]string{}
			if contextTag != "" {
				metadata[job.MetaContext] = contextTag
			}
			if language != "" {
				metadata[job.MetaLanguage] = language
			}
			j := &job.Job{
				ID:         uuid.New(),
				AudioRef:   filepath.Base(absPath),
				Transcript: transcript,
				Status:     job.StatusProcessing,
				Metadata:   metadata,
			}

			progress := func(int) {}
			if showProgress {
				progress = func(p int) { fmt.Fprintf(cmd.ErrOrStderr(), "progress %d%%\n", p) }
			}

			res, runErr := handler.Handle(cmd.Context(), j, progress)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&transcriptFile, "transcript-file", "", "File holding the transcript of the recording")
	cmd.Flags().StringVar(&contextTag, "context", "", "Speaking context profile, e.g. interview or sales_pitch")
	cmd.Flags().StringVar(&language, "language", "", "Transcript language (en or es); detected when empty")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Print progress checkpoints to stderr")

	return cmd
}
