package cmd

import (
	"fmt"

	"github.com/mncam/surface/internal/config"
	"github.com/spf13/cobra"
)

var configSave string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Load the configuration file over the built-in defaults and print the
result. With --save the result is written to a new file instead; the
extension (.ini or .toml) selects the format.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVar(&configSave, "save", "", "write the effective configuration to this file")
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if configSave != "" {
		if err := cfg.Save(configSave); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", configSave)
		return nil
	}
	printConfig(cfg)
	return nil
}

func printConfig(cfg *config.Config) {
	bits, _ := cfg.Encoder.BitrateBits()
	fmt.Println("Sensor:")
	fmt.Printf("  Framerate: %d fps\n", cfg.Sensor.Framerate)
	fmt.Println("Monitor:")
	fmt.Printf("  Output:    %s %s, %d layers\n", cfg.Monitor.Output, cfg.Monitor.Mode, cfg.Monitor.Layers)
	fmt.Printf("  Touch:     %s rotate %d flip-x %t flip-y %t\n", cfg.Monitor.TouchscreenRes,
		cfg.Monitor.TouchscreenRotate, cfg.Monitor.TouchscreenFlipX, cfg.Monitor.TouchscreenFlipY)
	fmt.Printf("  Exposure:  %d-%d IRE\n", cfg.Monitor.ExposureHelperMin, cfg.Monitor.ExposureHelperMax)
	fmt.Println("Output:")
	fmt.Printf("  Output:    %s %s@%d, enabled %t\n", cfg.Output.Output, cfg.Output.Mode, cfg.Output.Framerate, cfg.Output.Enabled)
	fmt.Println("Encoder:")
	fmt.Printf("  Bitrate:   %s (%d bit/s), enabled %t\n", cfg.Encoder.Bitrate, bits, cfg.Encoder.Enabled)
}
