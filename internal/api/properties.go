package api

import (
	"fmt"

	"github.com/mncam/surface/internal/ui"
)

// Property paths, relative to Prefix.
const (
	PropGain         = "/video/gain"
	PropShutter      = "/video/shutter"
	PropWhiteBalance = "/video/whiteBalance"
	PropAutoExposure = "/video/autoExposure"
	PropTally        = "/tally"
)

// surfaceProps are the properties that follow the control surface.
var surfaceProps = []string{PropGain, PropShutter, PropWhiteBalance, PropAutoExposure}

// Properties lists every property a websocket client can subscribe to.
var Properties = []string{PropGain, PropShutter, PropWhiteBalance, PropAutoExposure, PropTally}

// Gain is in decibels.
type Gain struct {
	Gain float64 `json:"gain"`
}

// Shutter carries the exposure as a 1/x second denominator.
type Shutter struct {
	ContinuousShutterAutoExposure bool `json:"continuousShutterAutoExposure"`
	ShutterSpeed                  int  `json:"shutterSpeed"`
}

// WhiteBalance is the colour temperature in kelvin.
type WhiteBalance struct {
	WhiteBalance int  `json:"whiteBalance"`
	Auto         bool `json:"auto"`
}

// Auto exposure modes.
const (
	ModeOff        = "Off"
	ModeContinuous = "Continuous"
)

type AutoExposure struct {
	Mode string `json:"mode"`
	Type string `json:"type"`
}

type Tally struct {
	State string `json:"state"`
}

// System describes the recorded stream.
type System struct {
	CodecFormat CodecFormat `json:"codecFormat"`
	VideoFormat VideoFormat `json:"videoFormat"`
}

type CodecFormat struct {
	Codec     string `json:"codec"`
	Container string `json:"container"`
}

type VideoFormat struct {
	Name       string `json:"name"`
	FrameRate  string `json:"frameRate"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Interlaced bool   `json:"interlaced"`
}

// NewSystem describes a progressive stream of the given size and rate.
// Without the encoder the stream is uncompressed.
func NewSystem(width, height, fps int, encoder bool) System {
	codec := CodecFormat{Codec: "H.264", Container: "MPEG2-TS"}
	if !encoder {
		codec = CodecFormat{Codec: "None", Container: "None"}
	}
	return System{
		CodecFormat: codec,
		VideoFormat: VideoFormat{
			Name:      fmt.Sprintf("%dp%d", height, fps),
			FrameRate: fmt.Sprintf("%d.00", fps),
			Width:     width,
			Height:    height,
		},
	}
}

// properties maps a surface snapshot to the published property values.
// Tally is not part of the surface and is published separately.
func properties(snap ui.Snapshot) map[string]any {
	mode := ModeOff
	if snap.AutoExposure {
		mode = ModeContinuous
	}
	speed := 0
	if snap.Shutter > 0 {
		speed = int(1/snap.Shutter + 0.5)
	}
	return map[string]any{
		PropGain: Gain{Gain: snap.Gain},
		PropShutter: Shutter{
			ContinuousShutterAutoExposure: snap.AutoExposure,
			ShutterSpeed:                  speed,
		},
		PropWhiteBalance: WhiteBalance{WhiteBalance: snap.WhiteBalance, Auto: snap.AutoWhiteBalance},
		PropAutoExposure: AutoExposure{Mode: mode},
	}
}
