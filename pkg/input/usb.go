package input

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// TouchController is a USB touch controller found on the bus.
type TouchController struct {
	VendorID    uint16
	ProductID   uint16
	Bus         int
	Address     int
	Description string
}

func (c TouchController) String() string {
	return fmt.Sprintf("%s (%04x:%04x) bus %d addr %d", c.Description, c.VendorID, c.ProductID, c.Bus, c.Address)
}

// Vendors of USB HID touch controllers commonly fitted to field monitors.
var knownTouchVendors = map[uint16]string{
	0x0eef: "eGalax touchscreen",
	0x222a: "ILITEK touchscreen",
	0x0dfc: "GeneralTouch touchscreen",
	0x04f3: "Elan touchscreen",
	0x2386: "Raydium touchscreen",
	0x1926: "NextWindow touchscreen",
	0x27c6: "Goodix touchscreen",
}

// DiscoverTouchControllers lists USB touch controllers by vendor. Devices
// are matched on their descriptors only and never opened. I2C and DSI
// panels do not show up here; they are still found by ListDevices.
func DiscoverTouchControllers(ctx context.Context) ([]TouchController, error) {
	var results []TouchController
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if name, ok := knownTouchVendors[uint16(desc.Vendor)]; ok {
			results = append(results, TouchController{
				VendorID:    uint16(desc.Vendor),
				ProductID:   uint16(desc.Product),
				Bus:         desc.Bus,
				Address:     desc.Address,
				Description: name,
			})
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, fmt.Errorf("input: usb enumeration: %w", err)
	}
	return results, nil
}
