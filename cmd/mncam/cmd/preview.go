package cmd

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/mncam/surface/internal/api"
	"github.com/mncam/surface/internal/desktop"
	"github.com/mncam/surface/internal/ui"
	"github.com/mncam/surface/pkg/camera"
	"github.com/mncam/surface/pkg/input"
	"github.com/mncam/surface/pkg/kms"
	"github.com/mncam/surface/pkg/preview"
	"github.com/spf13/cobra"
)

var (
	previewWidth  int
	previewHeight int
	previewAPI    string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Run the control surface against a simulated camera",
	Long: `Start a simulated display card and camera and show what the monitor and
HDMI outputs would display in a desktop window. Clicks on the monitor
image are fed to the surface as taps; two quick clicks are a double tap.
With --api the remote control API drives the simulated camera.`,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().IntVar(&previewWidth, "width", 1920, "simulated video width")
	previewCmd.Flags().IntVar(&previewHeight, "height", 1080, "simulated video height")
	previewCmd.Flags().StringVar(&previewAPI, "api", "", "remote control API address (empty: disabled)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	outs := outputs(cfg)
	var sims []kms.SimOutput
	names := make([]string, len(outs))
	for i, o := range outs {
		sims = append(sims, kms.NewSimOutput(o.Name, o.Width, o.Height, 60))
		names[i] = o.Name
	}
	sim := kms.NewSim(sims...)
	cam := camera.NewSimCamera(camera.StreamConfig{
		Format: "YUV420",
		Width:  previewWidth,
		Height: previewHeight,
		Stride: previewWidth,
	})
	sim.DmabufImage = cam.Image

	dc := preview.NewDisplayContext(sim)
	comp, err := preview.NewCompositor(dc)
	dc.Release()
	if err != nil {
		return err
	}
	for _, oc := range outs {
		if _, err := comp.UseOutput(oc); err != nil {
			return fmt.Errorf("use output %s: %w", oc.Name, err)
		}
	}
	if err := comp.Configure(cam.Config); err != nil {
		return err
	}

	queue := input.NewQueue(64)
	opts := ui.Options{
		Monitor: cfg.Monitor.Output,
		Size:    image.Pt(cfg.Monitor.Mode.Width, cfg.Monitor.Mode.Height),
		FPS:     cfg.Sensor.Framerate,
	}
	if len(outs) > 1 {
		opts.Mirror = outs[1].Name
	}
	surface := ui.New(opts, cam, cam, comp, queue)
	surface.SetCameraID("sim")

	ctx := context.Background()
	if previewAPI != "" {
		system := api.NewSystem(previewWidth, previewHeight, cfg.Sensor.Framerate, cfg.Encoder.Enabled)
		remote := api.New(api.Config{Addr: previewAPI, System: system}, surface, cam)
		go func() {
			if err := remote.ListenAndServe(ctx); err != nil {
				log.Printf("mncam: %v", err)
			}
		}()
	}
	go streamFrames(ctx, cam, comp, surface, cfg.Sensor.Framerate)
	go surface.Run(ctx)

	size := windowSize(outs)
	if verbose {
		fmt.Printf("Preview: %s, window %dx%d\n", cam.Config, size.X, size.Y)
	}
	desktop.Main("mncam preview", size, sim, queue, names...)
	return nil
}

// streamFrames feeds simulated frames to the compositor at fps.
func streamFrames(ctx context.Context, cam *camera.SimCamera, comp *preview.Compositor, surface *ui.Surface, fps int) {
	if fps <= 0 {
		fps = 30
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		f, md := cam.Capture()
		if err := comp.RenderFrame(f); err != nil {
			log.Printf("mncam: frame %d: %v", f.BufferID(), err)
		}
		f.Release()
		surface.UpdateMetadata(md)
	}
}

// windowSize fits the outputs side by side at the first output's height.
func windowSize(outs []preview.OutputConfig) image.Point {
	if len(outs) == 0 {
		return image.Pt(640, 480)
	}
	h := outs[0].Height
	w := outs[0].Width
	for _, o := range outs[1:] {
		if o.Height > 0 {
			w += o.Width * h / o.Height
		}
	}
	return image.Pt(w, h)
}
