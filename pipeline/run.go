package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	iface "EdgeLPR/interface"

	"go.uber.org/zap"
)

// Run pulls frames from src until ctx is done or the source ends, writing one
// report line per frame to w. Frames are strictly sequential.
func (p *Pipeline) Run(ctx context.Context, src iface.FrameSource, w io.Writer) error {
	frames := 0
	defer func() {
		p.logger.Info("frame loop stopped", zap.Int("frames", frames))
	}()
	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := src.Next()
		if errors.Is(err, iface.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("next frame: %w", err)
		}
		frames++
		if _, err := fmt.Fprintln(w, FormatReport(p.Process(ctx, frame))); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
}
