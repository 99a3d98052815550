// Package pipeline runs one frame through detection, cropping, recognition and
// decoding. Frames are independent: nothing is carried from one to the next.
package pipeline

import (
	"context"
	"errors"
	"time"

	"EdgeLPR/accel"
	"EdgeLPR/decode"
	iface "EdgeLPR/interface"
	"EdgeLPR/region"

	"go.uber.org/zap"
)

const DefaultConfidenceFloor = 0.5

type Config struct {
	ConfidenceFloor float32
	PrefixLength    int
	InvokeTimeout   time.Duration
}

// Pipeline holds read-only handles built at startup.
type Pipeline struct {
	cfg        Config
	detector   iface.Detector
	recognizer iface.Recognizer
	extractor  *region.Extractor
	vocab      decode.Vocabulary
	queue      *accel.Queue
	observers  []iface.Observer
	logger     *zap.Logger
	now        func() time.Time
}

func New(cfg Config, det iface.Detector, rec iface.Recognizer, ext *region.Extractor,
	v decode.Vocabulary, q *accel.Queue, logger *zap.Logger, observers ...iface.Observer) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		detector:   det,
		recognizer: rec,
		extractor:  ext,
		vocab:      v,
		queue:      q,
		observers:  observers,
		logger:     logger.Named("pipeline"),
		now:        time.Now,
	}
}

// Process never fails: every adapter error degrades to a no-plate report.
func (p *Pipeline) Process(ctx context.Context, frame iface.Frame) iface.Report {
	start := p.now()
	r := p.run(ctx, frame)
	r.Floor = p.cfg.ConfidenceFloor
	r.At = start
	r.Duration = p.now().Sub(start)

	if r.Failed() {
		p.logger.Warn("frame degraded", zap.String("reason", r.Reason), zap.Error(r.Err))
	} else {
		p.logger.Debug("frame processed",
			zap.Bool("found", r.Found),
			zap.String("plate", r.Plate.String()),
			zap.Float32("score", r.Score),
			zap.Float32("maxScore", r.MaxScore),
			zap.Duration("duration", r.Duration))
	}
	for _, o := range p.observers {
		o.Observe(r)
	}
	return r
}

func (p *Pipeline) run(ctx context.Context, frame iface.Frame) iface.Report {
	var cands []iface.Detection
	err := p.invoke(ctx, func() error {
		var err error
		cands, err = p.detector.Detect(frame)
		return err
	})
	if err != nil {
		return failed(reasonFor(err, iface.ReasonDetect), err, 0)
	}

	best := SelectBest(cands)
	if best < 0 {
		return iface.Report{}
	}
	cand := cands[best]
	if cand.Score < p.cfg.ConfidenceFloor {
		return iface.Report{MaxScore: cand.Score}
	}

	crop, err := p.extractor.Extract(frame, cand.Box)
	if err != nil {
		return failed(iface.ReasonGeometry, err, cand.Score)
	}

	var seq iface.CharacterSequence
	err = p.invoke(ctx, func() error {
		var err error
		seq, err = p.recognizer.Recognize(crop)
		return err
	})
	if err != nil {
		return failed(reasonFor(err, iface.ReasonRecognize), err, cand.Score)
	}

	plate, err := decode.Greedy(seq, p.cfg.PrefixLength, p.vocab)
	if err != nil {
		return failed(iface.ReasonVocab, err, cand.Score)
	}
	return iface.Report{
		Found:    true,
		Plate:    plate,
		Score:    cand.Score,
		MaxScore: cand.Score,
	}
}

// invoke runs fn on the accelerator queue under the per-call timeout. fn's
// results must only be read when invoke returns nil.
func (p *Pipeline) invoke(ctx context.Context, fn func() error) error {
	if p.cfg.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.InvokeTimeout)
		defer cancel()
	}
	return p.queue.Do(ctx, fn)
}

func failed(reason string, err error, maxScore float32) iface.Report {
	return iface.Report{Reason: reason, Err: err, MaxScore: maxScore}
}

func reasonFor(err error, fallback string) string {
	if errors.Is(err, accel.ErrTimeout) {
		return iface.ReasonTimeout
	}
	return fallback
}
