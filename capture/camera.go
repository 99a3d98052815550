// Package capture supplies frames from OpenCV video devices and files.
package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"

	iface "EdgeLPR/interface"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var ErrEndOfStream = iface.ErrEndOfStream

type CameraConfig struct {
	// Device is a camera index ("0"), a device path, a video file or a stream URL.
	Device        string
	CaptureWidth  int
	CaptureHeight int
	FPS           int
	// FrameWidth and FrameHeight are the detector input size every frame is
	// resized to.
	FrameWidth  int
	FrameHeight int
}

// Camera is a FrameSource backed by gocv.VideoCapture. It is not safe for
// concurrent use.
type Camera struct {
	cfg    CameraConfig
	stream *gocv.VideoCapture
	raw    gocv.Mat
	sized  gocv.Mat
	rgb    gocv.Mat
	seq    int
	logger *zap.Logger
}

func OpenCamera(cfg CameraConfig, logger *zap.Logger) (*Camera, error) {
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %dx%d", cfg.FrameWidth, cfg.FrameHeight)
	}
	var device interface{} = cfg.Device
	if id, err := strconv.Atoi(cfg.Device); err == nil {
		device = id
	}
	stream, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", cfg.Device, err)
	}
	if !stream.IsOpened() {
		_ = stream.Close()
		return nil, fmt.Errorf("open capture %s: device not opened", cfg.Device)
	}
	if cfg.CaptureWidth > 0 && cfg.CaptureHeight > 0 {
		stream.Set(gocv.VideoCaptureFrameWidth, float64(cfg.CaptureWidth))
		stream.Set(gocv.VideoCaptureFrameHeight, float64(cfg.CaptureHeight))
	}
	if cfg.FPS > 0 {
		stream.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}
	logger = logger.Named("capture")
	logger.Info("capture opened",
		zap.String("device", cfg.Device),
		zap.Float64("width", stream.Get(gocv.VideoCaptureFrameWidth)),
		zap.Float64("height", stream.Get(gocv.VideoCaptureFrameHeight)),
		zap.Float64("fps", stream.Get(gocv.VideoCaptureFPS)))

	return &Camera{
		cfg:    cfg,
		stream: stream,
		raw:    gocv.NewMat(),
		sized:  gocv.NewMat(),
		rgb:    gocv.NewMat(),
		logger: logger,
	}, nil
}

// Next blocks for the next frame, resized to the detector size and converted
// to interleaved RGB. ErrEndOfStream is returned once the device or file has
// no more frames.
func (c *Camera) Next() (iface.Frame, error) {
	if ok := c.stream.Read(&c.raw); !ok || c.raw.Empty() {
		return iface.Frame{}, ErrEndOfStream
	}
	c.seq++
	if c.raw.Channels() != iface.Channels {
		return iface.Frame{}, fmt.Errorf("frame %d has %d channels", c.seq, c.raw.Channels())
	}
	gocv.Resize(c.raw, &c.sized, image.Pt(c.cfg.FrameWidth, c.cfg.FrameHeight), 0, 0, gocv.InterpolationLinear)
	gocv.CvtColor(c.sized, &c.rgb, gocv.ColorBGRToRGB)
	return iface.Frame{
		Pix:    c.rgb.ToBytes(),
		Width:  c.rgb.Cols(),
		Height: c.rgb.Rows(),
	}, nil
}

// Frames is how many frames have been read so far.
func (c *Camera) Frames() int {
	return c.seq
}

func (c *Camera) Close() error {
	c.logger.Debug("capture closed", zap.Int("frames", c.seq))
	return errors.Join(
		c.stream.Close(),
		c.raw.Close(),
		c.sized.Close(),
		c.rgb.Close(),
	)
}
