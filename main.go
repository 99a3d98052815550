package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"EdgeLPR/accel"
	"EdgeLPR/capture"
	"EdgeLPR/config"
	"EdgeLPR/engine"
	iface "EdgeLPR/interface"
	"EdgeLPR/logger"
	"EdgeLPR/monitor"
	"EdgeLPR/notify"
	"EdgeLPR/pipeline"
	"EdgeLPR/region"
	"EdgeLPR/vocab"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogMode, cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to init logger:", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		logger.Log().Error("edge lpr stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func banner(cfg config.Config) {
	fmt.Println(strings.Repeat("#", 64))
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
	fmt.Println(" Backend:", cfg.Backend, "EdgeTPU:", cfg.EdgeTPU)
	fmt.Println(" Detector:", cfg.Detector.ModelPath)
	fmt.Println(" Recognizer:", cfg.Recognizer.ModelPath)
	fmt.Println(" Camera:", cfg.Camera.Device)
	if cfg.MetricsPort > 0 {
		fmt.Println(" Monitor Port:", cfg.MetricsPort)
	}
	fmt.Println(strings.Repeat("#", 64))
}

func run(cfg config.Config) error {
	log := logger.Log()
	banner(cfg)

	table, err := loadVocabulary(cfg)
	if err != nil {
		return err
	}

	// every model call, loading included, happens on the queue's thread
	queue := accel.New(log, 1)
	defer queue.Close()

	det, rec, err := loadModels(queue, cfg, log.Named("engine"))
	if err != nil {
		return err
	}
	defer func() {
		_ = queue.Do(context.Background(), func() error {
			rec.Destroy()
			det.Destroy()
			return nil
		})
	}()
	if err := pipeline.CheckModels(rec, table, cfg.PrefixLength); err != nil {
		return err
	}
	log.Info("models ready",
		zap.Any("detector", det.CheckConfig()),
		zap.Any("recognizer", rec.CheckConfig()),
		zap.Int("vocabulary", table.Len()))

	src, err := capture.OpenCamera(capture.CameraConfig{
		Device:        cfg.Camera.Device,
		CaptureWidth:  cfg.Camera.CaptureWidth,
		CaptureHeight: cfg.Camera.CaptureHeight,
		FPS:           cfg.Camera.FPS,
		FrameWidth:    cfg.FrameWidth,
		FrameHeight:   cfg.FrameHeight,
	}, log)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		wg        sync.WaitGroup
		observers []iface.Observer
	)
	if cfg.MetricsPort > 0 {
		if cfg.LogMode != "development" {
			gin.SetMode(gin.ReleaseMode)
		}
		mon := monitor.New(log, map[string]iface.EngineConfig{
			"detector":   det.CheckConfig(),
			"recognizer": rec.CheckConfig(),
		})
		observers = append(observers, mon)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mon.StartMon(ctx, cfg.MetricsPort); err != nil {
				log.Error("monitor stopped", zap.Error(err))
			}
		}()
	}
	if d := newDispatcher(cfg, log); d != nil {
		observers = append(observers, d)
		defer func() {
			if err := d.Close(); err != nil {
				log.Warn("close plate event sinks", zap.Error(err))
			}
		}()
	}

	p := pipeline.New(pipeline.Config{
		ConfidenceFloor: cfg.ConfidenceFloor,
		PrefixLength:    cfg.PrefixLength,
		InvokeTimeout:   cfg.InvokeTimeout(),
	}, det, rec, region.NewExtractor(cfg.CropWidth, cfg.CropHeight, newResampler(cfg)), table, queue, log, observers...)

	err = p.Run(ctx, src, os.Stdout)
	stop()
	wg.Wait()
	fmt.Println("Safely exited")
	return err
}

func loadVocabulary(cfg config.Config) (*vocab.Table, error) {
	if cfg.VocabularyFile == "" {
		return vocab.LPRNet()
	}
	table, err := vocab.Load(cfg.VocabularyFile, cfg.BlankToken)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return table, nil
}

func loadModels(queue *accel.Queue, cfg config.Config, log *zap.Logger) (iface.Detector, iface.Recognizer, error) {
	opts := engine.Options{
		Backend:       cfg.Backend,
		UseEdgeTPU:    cfg.EdgeTPU,
		EdgeTPUDevice: cfg.EdgeTPUDevice,
		NumThreads:    cfg.NumThreads,
	}
	var (
		det iface.Detector
		rec iface.Recognizer
	)
	err := queue.Do(context.Background(), func() error {
		var err error
		start := time.Now()
		det, err = engine.LoadDetector(opts, engine.DetectorSpec{
			ModelPath:  cfg.Detector.ModelPath,
			InputSlot:  cfg.Detector.InputSlot,
			ScoresSlot: cfg.Detector.ScoresSlot,
			BoxesSlot:  cfg.Detector.BoxesSlot,
			Width:      cfg.FrameWidth,
			Height:     cfg.FrameHeight,
		}, log)
		if err != nil {
			return fmt.Errorf("load detector: %w", err)
		}
		log.Info("detector loaded", zap.Duration("took", time.Since(start)))

		start = time.Now()
		rec, err = engine.LoadRecognizer(opts, engine.RecognizerSpec{
			ModelPath:  cfg.Recognizer.ModelPath,
			InputSlot:  cfg.Recognizer.InputSlot,
			OutputSlot: cfg.Recognizer.OutputSlot,
			Width:      cfg.CropWidth,
			Height:     cfg.CropHeight,
			ClassMajor: cfg.Recognizer.ClassMajor,
		}, log)
		if err != nil {
			det.Destroy()
			return fmt.Errorf("load recognizer: %w", err)
		}
		log.Info("recognizer loaded", zap.Duration("took", time.Since(start)))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return det, rec, nil
}

func newResampler(cfg config.Config) iface.Resampler {
	if cfg.Resampler == config.ResamplerOpenCV {
		return capture.Resampler{}
	}
	return region.Bilinear{}
}

func newDispatcher(cfg config.Config, log *zap.Logger) *notify.Dispatcher {
	timeout := time.Duration(cfg.Notify.TimeoutSeconds) * time.Second
	var sinks []notify.Sink
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL, timeout))
	}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		producer, err := notify.ConnectProducer(cfg.Notify.KafkaBrokers)
		if err != nil {
			// events are optional, the pipeline runs without them
			log.Error("connect kafka producer", zap.Strings("brokers", cfg.Notify.KafkaBrokers), zap.Error(err))
		} else {
			sinks = append(sinks, notify.NewKafkaSink(producer, cfg.Notify.KafkaTopic))
		}
	}
	if len(sinks) == 0 {
		return nil
	}
	return notify.NewDispatcher(log, cfg.Camera.Device, cfg.Notify.QueueSize, timeout, sinks...)
}
