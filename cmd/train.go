package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RyanBlaney/cgmm-mask/internal/app"
	"github.com/spf13/cobra"
)

var (
	// Train command flags
	trainIterations  int
	trainDest        string
	trainWindowSize  int
	trainHopSize     int
	trainWorkers     int
	trainMaxChannels int
	trainJobFile     string
	trainReport      string
	trainQuiet       bool
	trainMetrics     bool
	trainComplexMask bool
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train [flags] <wav-file>",
	Short: "Train the noise and noisy models and save the noise mask",
	Long: `Decode a multichannel WAV file, compute its STFT, fit the noise and
noisy complex Gaussian mixture classes by EM and save the selected noise
mask as noise_lambda.npy in the destination directory.

Examples:
  # Train with defaults and write the mask to ./out
  cgmm-mask train --dest out recording.wav

  # Fewer iterations with a shorter STFT window
  cgmm-mask train --iterations 10 --window-size 1024 --hop-size 256 recording.wav

  # Load settings from a job file and write a YAML report
  cgmm-mask train --job job.yaml -o yaml --report reports/run.yaml`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return fmt.Errorf("accepts at most one WAV file, received %d", len(args))
		}
		if len(args) == 0 && trainJobFile == "" {
			return fmt.Errorf("requires a WAV file or --job flag")
		}
		return nil
	},
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().IntVarP(&trainIterations, "iterations", "n", 30,
		"number of EM iterations")
	trainCmd.Flags().StringVarP(&trainDest, "dest", "d", "",
		"directory the noise mask is written to (default from config)")
	trainCmd.Flags().IntVar(&trainWindowSize, "window-size", 0,
		"STFT window size in samples (default from config)")
	trainCmd.Flags().IntVar(&trainHopSize, "hop-size", 0,
		"STFT hop size in samples (default from config)")
	trainCmd.Flags().IntVarP(&trainWorkers, "workers", "w", 0,
		"maximum frequency bins processed in parallel (default from config)")
	trainCmd.Flags().IntVar(&trainMaxChannels, "max-channels", 0,
		"use only the first N channels of the input")
	trainCmd.Flags().StringVar(&trainJobFile, "job", "",
		"job file (YAML or JSON) with per-run settings")
	trainCmd.Flags().StringVar(&trainReport, "report", "",
		"write the run report to this file instead of stdout")
	trainCmd.Flags().BoolVarP(&trainQuiet, "quiet", "q", false,
		"do not print the run report")
	trainCmd.Flags().BoolVar(&trainMetrics, "metrics", false,
		"emit operational metrics after a successful run")
	trainCmd.Flags().BoolVar(&trainComplexMask, "complex-mask", false,
		"save the mask as complex128 instead of its real part")
}

func runTrain(cmd *cobra.Command, args []string) error {
	appCtx := &app.Context{
		JobFile:       trainJobFile,
		DestDir:       trainDest,
		OutputFile:    trainReport,
		WindowSize:    trainWindowSize,
		HopSize:       trainHopSize,
		Workers:       trainWorkers,
		MaxChannels:   trainMaxChannels,
		Verbose:       verbose,
		Quiet:         trainQuiet,
		EnableMetrics: trainMetrics,
		ComplexMask:   trainComplexMask,
	}
	if len(args) == 1 {
		appCtx.InputFile = args[0]
	}
	if cmd.Flags().Changed("output") {
		appCtx.OutputFormat = outputFormat
	}
	if cmd.Flags().Changed("iterations") {
		appCtx.Iterations = &trainIterations
	}

	maskApp, err := app.NewMaskApp(appCtx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return maskApp.Run(ctx)
}
