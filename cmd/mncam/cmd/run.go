package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mncam/surface/internal/api"
	"github.com/mncam/surface/internal/config"
	"github.com/mncam/surface/internal/ui"
	"github.com/mncam/surface/pkg/camera"
	"github.com/mncam/surface/pkg/edid"
	"github.com/mncam/surface/pkg/input"
	"github.com/mncam/surface/pkg/kms"
	"github.com/mncam/surface/pkg/preview"
	"github.com/spf13/cobra"
)

var (
	runCard    string
	runSocket  string
	runTouch   []string
	runFormat  string
	runWidth   int
	runHeight  int
	runStride  int
	runBuffers int
	runNoIPC   bool
	runFrames  string
	runAPI     string
	runTally   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control surface on the camera",
	Long: `Open the display card, reserve the monitor (and the HDMI output when it
is enabled), connect to the sensor process and run the touch control
surface until interrupted.

The video stream is negotiated by the capture pipeline; --format, --width,
--height, --stride and --buffers describe it so the display planes can be
set up before the first frame. Frames and later stream changes arrive on
the --frames socket.

The remote control API is served on --api unless it is empty. The tally
light shows --tally while running and goes off on exit.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runCard, "card", "/dev/dri/card1", "DRM card device")
	runCmd.Flags().StringVar(&runSocket, "socket", camera.DefaultSocket, "sensor control socket")
	runCmd.Flags().StringSliceVar(&runTouch, "touch", nil, "touch input devices (default: every touch device found)")
	runCmd.Flags().StringVar(&runFormat, "format", "YUV420", "video pixel format")
	runCmd.Flags().IntVar(&runWidth, "width", 1920, "video width")
	runCmd.Flags().IntVar(&runHeight, "height", 1080, "video height")
	runCmd.Flags().IntVar(&runStride, "stride", 0, "video line stride in bytes (default: width)")
	runCmd.Flags().IntVar(&runBuffers, "buffers", 4, "video buffer pool size")
	runCmd.Flags().BoolVar(&runNoIPC, "no-ipc", false, "do not connect to the sensor process")
	runCmd.Flags().StringVar(&runFrames, "frames", camera.DefaultFrameSocket, "video frame socket (empty: no video)")
	runCmd.Flags().StringVar(&runAPI, "api", api.DefaultAddr, "remote control API address (empty: disabled)")
	runCmd.Flags().StringVar(&runTally, "tally", "off", "tally light while running: off, program or preview")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tally, err := camera.ParseTally(runTally)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := kms.Open(runCard)
	if err != nil {
		return err
	}
	dc := preview.NewDisplayContext(dev)
	comp, err := preview.NewCompositor(dc)
	// The compositor holds its own reference from here on.
	dc.Release()
	if err != nil {
		return err
	}
	defer func() {
		if err := comp.Stop(); err != nil {
			log.Printf("mncam: stop: %v", err)
		}
	}()

	outs := outputs(cfg)
	for _, oc := range outs {
		if _, err := comp.UseOutput(oc); err != nil {
			return fmt.Errorf("use output %s: %w", oc.Name, err)
		}
	}
	stride := runStride
	if stride == 0 {
		stride = runWidth
	}
	stream := camera.StreamConfig{
		Format:      runFormat,
		Width:       runWidth,
		Height:      runHeight,
		Stride:      stride,
		BufferCount: runBuffers,
	}
	if err := comp.Configure(stream); err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Stream: %s\n", stream)
	}

	var ctrl camera.Controller = discardControls{}
	var light camera.Tally
	if !runNoIPC {
		client, err := camera.Dial(ctx, runSocket)
		if err != nil {
			return err
		}
		defer client.Close()
		ctrl, light = client, client
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
	surface := ui.New(opts, ctrl, controlRanges(cfg), comp, queue)

	if info, err := edid.Read(edid.DefaultPattern); err == nil {
		surface.SetCameraID(info.String())
	} else if !errors.Is(err, edid.ErrNoEDID) {
		log.Printf("mncam: %v", err)
	}

	var remote *api.Server
	if runAPI != "" {
		system := api.NewSystem(stream.Width, stream.Height, cfg.Sensor.Framerate, cfg.Encoder.Enabled)
		remote = api.New(api.Config{Addr: runAPI, System: system}, surface, light)
	}

	pipe, err := startTouch(ctx, queue, cfg)
	if err != nil {
		return err
	}
	defer func() {
		stop()
		pipe.Wait()
	}()

	if client, ok := ctrl.(*camera.IPCClient); ok {
		if err := client.RequestState(); err != nil {
			return err
		}
		go func() {
			err := client.Listen(ctx, func(msg camera.Message) {
				switch m := msg.(type) {
				case camera.SensorState:
					surface.UpdateMetadata(m.Metadata(time.Now()))
				case camera.ControlState:
					surface.UpdateControls(m)
				}
			})
			if err != nil {
				log.Printf("mncam: sensor: %v", err)
				stop()
			}
		}()
	}

	if runFrames != "" {
		frames, err := camera.DialFrames(ctx, runFrames)
		if err != nil {
			return err
		}
		defer frames.Close()
		go func() {
			if err := streamVideo(ctx, frames, comp); err != nil {
				log.Printf("mncam: frames: %v", err)
				stop()
			}
		}()
	}

	if remote != nil {
		go func() {
			if err := remote.ListenAndServe(ctx); err != nil {
				log.Printf("mncam: %v", err)
				stop()
			}
		}()
	}

	if light != nil {
		setTally(remote, light, tally)
		defer setTally(remote, light, camera.TallyOff)
	}

	fmt.Printf("Running on %s (%s)\n", cfg.Monitor.Output, cfg.Monitor.Mode)
	if err := surface.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startTouch starts readers for --touch, or for every touch device when no
// path was given.
func startTouch(ctx context.Context, q *input.Queue, cfg *config.Config) (*input.Pipeline, error) {
	paths := runTouch
	if len(paths) == 0 {
		devs, err := input.ListDevices()
		if err != nil {
			return nil, err
		}
		for _, d := range devs {
			if d.Touch {
				paths = append(paths, d.Path)
			}
		}
	}
	if len(paths) == 0 {
		log.Printf("mncam: no touch devices found")
	}
	pipe := input.NewPipeline(q, cfg.Transform())
	if err := pipe.Start(ctx, paths); err != nil {
		return nil, err
	}
	return pipe, nil
}

// streamVideo shows every frame from the capture process and follows its
// stream changes.
func streamVideo(ctx context.Context, frames *camera.FrameSource, comp *preview.Compositor) error {
	return frames.Listen(ctx, func(cfg camera.StreamConfig) {
		if verbose {
			fmt.Printf("Stream: %s\n", cfg)
		}
		if err := comp.Configure(cfg); err != nil {
			log.Printf("mncam: stream: %v", err)
		}
	}, func(f camera.Frame) {
		if err := comp.RenderFrame(f); err != nil && !errors.Is(err, preview.ErrPreviewNotReady) {
			log.Printf("mncam: frame %d: %v", f.BufferID(), err)
		}
		f.Release()
	})
}

// setTally goes through the API when it runs so remote clients see the
// change.
func setTally(remote *api.Server, light camera.Tally, state byte) {
	var err error
	if remote != nil {
		err = remote.SetTally(state)
	} else {
		err = light.SetTally(state)
	}
	if err != nil {
		log.Printf("mncam: tally: %v", err)
	}
}

// discardControls stands in for the sensor process with --no-ipc.
type discardControls struct{}

func (discardControls) EnableAutoExposure(bool) error     { return nil }
func (discardControls) SetGain(int) error                 { return nil }
func (discardControls) SetShutter(int) error              { return nil }
func (discardControls) SetFPS(int) error                  { return nil }
func (discardControls) SetExposureValue(float64) error    { return nil }
func (discardControls) EnableAutoWhiteBalance(bool) error { return nil }
func (discardControls) OneShotWhiteBalance() error        { return nil }
