package cmd

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/mncam/surface/internal/config"
	"github.com/mncam/surface/pkg/camera"
	"github.com/mncam/surface/pkg/preview"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "mncam",
	Short: "Camera touchscreen control surface",
	Long: `Drive the on-camera touchscreen: composite the live video with the
control overlay on the monitor and HDMI outputs and turn touches into
camera control changes.

Examples:
  mncam run                         # Run on the camera hardware
  mncam preview                     # Simulated camera in a desktop window
  mncam devices                     # List displays and touch devices
  mncam config --config mncam.toml  # Show the effective configuration`,
	Version: "0.3.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "configuration file (.ini or .toml)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		fmt.Printf("Config: %s (monitor %s %s, output %s %s)\n", configPath,
			cfg.Monitor.Output, cfg.Monitor.Mode, cfg.Output.Output, cfg.Output.Mode)
	}
	return cfg, nil
}

// controlRanges are the sensor limits used when the camera process does
// not report its own.
func controlRanges(cfg *config.Config) camera.Ranges {
	return camera.Ranges{
		camera.ControlAnalogueGain:  {Min: 1, Max: 16, Default: 1},
		camera.ControlExposureTime:  {Min: 125, Max: 33333, Default: 20000},
		camera.ControlExposureValue: {Min: -8, Max: 8, Default: 0},
		camera.ControlFrameRate:     {Min: 1, Max: float64(maxFPS(cfg)), Default: float64(cfg.Sensor.Framerate)},
	}
}

func maxFPS(cfg *config.Config) int {
	if cfg.Encoder.Enabled {
		return 30
	}
	return 60
}

// outputs returns the monitor and, when enabled, the HDMI output.
func outputs(cfg *config.Config) []preview.OutputConfig {
	mon := cfg.Monitor
	out := []preview.OutputConfig{{
		Name:   mon.Output,
		Width:  mon.Mode.Width,
		Height: mon.Mode.Height,
		Layers: mon.Layers,
		Video:  panelVideo(mon.Output, mon.Mode.Width, mon.Mode.Height),
	}}
	if cfg.Output.Enabled && cfg.Output.Output != "" && cfg.Output.Output != mon.Output {
		out = append(out, preview.OutputConfig{
			Name:    cfg.Output.Output,
			Width:   cfg.Output.Mode.Width,
			Height:  cfg.Output.Mode.Height,
			Refresh: cfg.Output.Framerate,
			Layers:  1,
		})
	}
	return out
}

// panelVideo is the video window on a DSI panel: a 16:9 strip across the
// top, leaving the rest of the panel to the control bars. Other outputs
// fit the video to the whole screen.
func panelVideo(name string, width, height int) image.Rectangle {
	if !strings.HasPrefix(name, "DSI") {
		return image.Rectangle{}
	}
	h := width * 9 / 16
	if h <= 0 || h >= height {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, width, h)
}
