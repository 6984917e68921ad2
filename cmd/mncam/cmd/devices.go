package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mncam/surface/pkg/input"
	"github.com/mncam/surface/pkg/kms"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List display connectors and touch devices",
	Long: `Print the connectors of the display card, the input devices that report
touch coordinates and any USB touch controllers on the bus. Use this to
find the names for the [monitor] and [output] configuration sections.`,
	RunE: runDevices,
}

var devicesCard string

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().StringVar(&devicesCard, "card", "/dev/dri/card1", "DRM card device")
}

func runDevices(cmd *cobra.Command, args []string) error {
	if dev, err := kms.Open(devicesCard); err != nil {
		fmt.Printf("Display: %v\n", err)
	} else {
		printConnectors(dev.Connectors())
		dev.Close()
	}

	devs, err := input.ListDevices()
	if err != nil {
		return err
	}
	printInputDevices(devs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ctrls, err := input.DiscoverTouchControllers(ctx)
	if err != nil {
		return fmt.Errorf("discover touch controllers: %w", err)
	}
	if len(ctrls) == 0 {
		fmt.Println("No USB touch controllers found.")
		return nil
	}
	fmt.Println("USB touch controllers:")
	for _, c := range ctrls {
		fmt.Printf("  - %s\n", c)
	}
	return nil
}

func printConnectors(conns []*kms.Connector) {
	fmt.Println("Display connectors:")
	for _, c := range conns {
		status := "disconnected"
		if c.Connected {
			status = "connected"
		}
		mode := "-"
		if m, ok := c.PreferredMode(); ok {
			mode = m.String()
		}
		fmt.Printf("  - %-10s %-12s %s\n", c.Name, status, mode)
	}
}

func printInputDevices(devs []input.DeviceInfo) {
	n := 0
	for _, d := range devs {
		if !d.Touch {
			continue
		}
		if n == 0 {
			fmt.Println("Touch devices:")
		}
		n++
		fmt.Printf("  - %s %q (%dx%d)\n", d.Path, d.Name, d.MaxX+1, d.MaxY+1)
	}
	if n == 0 {
		fmt.Println("No touch devices found.")
	}
}
