package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imageeditor/internal/domain"
	"imageeditor/internal/imatrix"
	"imageeditor/internal/service"
	"imageeditor/internal/statistics"
	"imageeditor/pkg/utils"
)

var (
	redactParams string
	redactPreset string
	redactOut    string
)

var redactCmd = &cobra.Command{
	Use:   "redact <file|dir>",
	Short: "Run the editor over local images",
	Long: `Redact applies the editor parameters to one image or every image in a
directory and writes the rendered parts next to each other.

If --out names a .png file and exactly one image is given, only the redacted
image is written there. Otherwise --out is a directory that receives every
part as <part>_<name>.png.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := loadParams(redactParams, redactPreset)
		if err != nil {
			return err
		}
		return runRedact(cmd.Context(), args[0], redactOut, params)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Print brightness histograms of an image as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		img, _, err := utils.NewImageProcessor(log.Desugar(), cfg.App.MaxPixels).Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		return enc.Encode(statistics.GetStatistics(imatrix.FromImage(img)))
	},
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the default editor parameters as a YAML preset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return domain.DefaultEditorParams().WritePreset(cmd.OutOrStdout())
	},
}

func init() {
	redactCmd.Flags().StringVar(&redactParams, "params", "", "editor parameters as a query string, e.g. Negative=true&Order=BGR")
	redactCmd.Flags().StringVar(&redactPreset, "preset", "", "YAML file with editor parameters")
	redactCmd.Flags().StringVarP(&redactOut, "out", "o", ".", "output directory, or a .png file for a single image")
	redactCmd.MarkFlagsMutuallyExclusive("params", "preset")
}

func loadParams(query, preset string) (domain.EditorParams, error) {
	if preset == "" {
		return domain.ParseParams(query)
	}
	f, err := os.Open(preset)
	if err != nil {
		return domain.EditorParams{}, err
	}
	defer f.Close()

	p, err := domain.LoadPreset(f)
	if err != nil {
		return domain.EditorParams{}, fmt.Errorf("%s: %w", preset, err)
	}
	return p, nil
}

func runRedact(ctx context.Context, input, out string, params domain.EditorParams) error {
	zlog := log.Desugar()
	files, err := utils.NewImageProcessor(zlog, cfg.App.MaxPixels).LocalImages(input, cfg.App.AllowedFormats)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", input)
	}

	single := strings.EqualFold(filepath.Ext(out), ".png")
	if single && len(files) > 1 {
		return fmt.Errorf("--out %s is a file but %d images were found", out, len(files))
	}
	if !single {
		if err := os.MkdirAll(out, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
	}

	svc := service.NewImageService(nil, nil, cfg, zlog)
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}

		result, err := svc.Redact(ctx, data, filepath.Base(file), params)
		if err != nil {
			return err
		}

		for _, part := range result.Parts {
			target := filepath.Join(out, utils.OutputName(file, part.Name))
			if single {
				if part.Name != domain.PartRedacted {
					continue
				}
				target = out
			}
			if err := os.WriteFile(target, part.Data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
		}

		zlog.Info("Image redacted",
			zap.String("file", file),
			zap.Strings("steps", result.Edit.Steps))
	}

	return nil
}
