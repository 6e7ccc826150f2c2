package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postgrab/pkg/config"
	"postgrab/pkg/grabber"
	"postgrab/pkg/models"
	"postgrab/pkg/ui"
)

var (
	grabOutputDir  string
	grabConcurrent int
	grabDryRun     bool
)

var grabCmd = &cobra.Command{
	Use:   "grab <post-url>",
	Short: "Extract and download every image from a post page",
	Long: `Extract images from a Threads, Instagram, Facebook, or X/Twitter post
page and download them with retry and bounded concurrency.

Carousel posts are paged through automatically. When the platform layout is
not recognized, a generic scan of the page is used instead.`,
	Example: `  # Download everything from a Threads post
  postgrab grab https://www.threads.net/@user/post/ABC123

  # Only list what would be downloaded
  postgrab grab --dry-run https://www.instagram.com/p/XYZ/

  # Custom output directory and window size
  postgrab grab -o ./saved -n 5 https://x.com/user/status/123`,
	Args: cobra.ExactArgs(1),
	RunE: runGrab,
}

func init() {
	rootCmd.AddCommand(grabCmd)
	grabCmd.Flags().StringVarP(&grabOutputDir, "output", "o", "", "output directory for downloads")
	grabCmd.Flags().IntVarP(&grabConcurrent, "concurrent", "n", 0, "max concurrent downloads")
	grabCmd.Flags().BoolVar(&grabDryRun, "dry-run", false, "extract and list images without downloading")
}

func runGrab(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyGrabFlags(cfg)

	g, err := grabber.New(cfg, nil)
	if err != nil {
		return err
	}
	g.SetNotifier(ui.NewNotifier(quiet))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress *ui.ProgressLine
	if !quiet && !grabDryRun {
		progress = ui.NewProgressLine(os.Stderr)
		g.Queue().Subscribe(progress.Update)
	}

	report, err := g.Grab(ctx, args[0], grabDryRun)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return err
	}

	if grabDryRun {
		printDryRun(report)
		return nil
	}

	if !quiet {
		ui.PrintInfo("Saved", fmt.Sprintf("%d/%d", report.Batch.Succeeded, len(report.Images)))
		if report.ManifestPath != "" {
			ui.PrintInfo("Manifest", report.ManifestPath)
		}
	}
	if report.Batch.Failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", report.Batch.Failed, len(report.Images))
	}
	return nil
}

func applyGrabFlags(cfg *config.Config) {
	if grabOutputDir != "" {
		cfg.Output.Directory = grabOutputDir
	}
	if grabConcurrent > 0 {
		cfg.Download.MaxConcurrent = grabConcurrent
	}
}

func printDryRun(report *grabber.Report) {
	ui.PrintInfo("Page", report.PageURL)
	ui.PrintInfo("Images found", fmt.Sprintf("%d", len(report.Images)))
	for i, img := range report.Images {
		kind := "image"
		if img.MediaType == models.MediaTypeVideo {
			kind = "video"
		}
		fmt.Printf("  %2d. [%s/%s] %s\n", i+1, img.Platform, kind, img.URL)
		if img.AltText != "" {
			fmt.Printf("      %s\n", ui.Dim(img.AltText))
		}
	}
}
