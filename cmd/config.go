package cmd

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/cgmm-mask/configs"
	"github.com/RyanBlaney/cgmm-mask/internal/app"
	"github.com/spf13/cobra"
)

var (
	configExampleJob  string
	configValidateJob string
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the effective configuration",
	Long: `Load the configuration and display all values to verify proper parsing.

Examples:
  # Show configuration from the default search paths
  cgmm-mask config

  # Show configuration from a specific file
  cgmm-mask --config /path/to/cgmm-mask.yaml config

  # Write an example job file, then validate it
  cgmm-mask config --example-job job.yaml
  cgmm-mask config --validate-job job.yaml`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVar(&configExampleJob, "example-job", "",
		"write an example job file to this path")
	configCmd.Flags().StringVar(&configValidateJob, "validate-job", "",
		"validate a job file against the default configuration")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configExampleJob != "" {
		return app.GenerateExampleJob(configExampleJob)
	}
	if configValidateJob != "" {
		return app.ValidateJobFile(configValidateJob)
	}

	fmt.Println("CGMM MASK CONFIGURATION")
	fmt.Println(strings.Repeat("=", 80))

	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	printSection("APPLICATION SETTINGS")
	printKeyValue("Config File", GetConfig().ConfigFileUsed())
	printKeyValue("Verbose", fmt.Sprintf("%t", config.Verbose))
	printKeyValue("Log Level", config.LogLevel)
	printKeyValue("Output Format", config.OutputFormat)

	printSection("AUDIO CONFIGURATION")
	printKeyValue("Window Size", fmt.Sprintf("%d samples", config.Audio.WindowSize))
	printKeyValue("Hop Size", fmt.Sprintf("%d samples", config.Audio.HopSize))
	printKeyValue("Window Function", config.Audio.WindowFunction)
	printKeyValue("Center", fmt.Sprintf("%t", config.Audio.Center))
	printKeyValue("Max Channels", maxChannelsLabel(config.Audio.MaxChannels))

	printSection("TRAINING CONFIGURATION")
	printKeyValue("Iterations", fmt.Sprintf("%d", config.Training.Iterations))
	printKeyValue("Workers", fmt.Sprintf("%d", config.Training.Workers))
	printKeyValue("Concurrent Classes", fmt.Sprintf("%t", config.Training.ConcurrentClasses))
	printKeyValue("Joint Epsilon", fmt.Sprintf("%.3e", config.Training.JointEpsilon))
	printKeyValue("Imaginary Tolerance", fmt.Sprintf("%.3e", config.Training.ImagTolerance))
	printKeyValue("Strict Imaginary", fmt.Sprintf("%t", config.Training.StrictImaginary))

	printSection("OUTPUT CONFIGURATION")
	printKeyValue("Directory", config.Output.Directory)
	printKeyValue("Write Report", fmt.Sprintf("%t", config.Output.WriteReport))
	printKeyValue("Include Bins", fmt.Sprintf("%t", config.Output.IncludeBins))
	printKeyValue("Complex Mask", fmt.Sprintf("%t", config.Output.ComplexMask))

	printSection("METRICS CONFIGURATION")
	printKeyValue("Enabled", fmt.Sprintf("%t", config.Metrics.Enabled))
	printKeyValue("Log File", config.Metrics.LogFile)

	if err := configs.ValidateConfig(config); err != nil {
		fmt.Printf("\nConfiguration is INVALID: %v\n", err)
		return err
	}
	fmt.Println("\nConfiguration is valid")

	return nil
}

func maxChannelsLabel(n int) string {
	if n == 0 {
		return "all"
	}
	return fmt.Sprintf("%d", n)
}

func printSection(title string) {
	fmt.Printf("\n%s\n", title)
	fmt.Println(strings.Repeat("-", len(title)))
}

func printKeyValue(key, value string) {
	if value == "" {
		fmt.Printf("%-35s\n", key)
	} else {
		fmt.Printf("%-35s %s\n", key+":", value)
	}
}
