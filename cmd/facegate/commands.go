package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/presensia/facegate/pkg/camera"
	"github.com/presensia/facegate/pkg/capture"
	"github.com/presensia/facegate/pkg/detect"
	"github.com/presensia/facegate/pkg/enroll"
	"github.com/presensia/facegate/pkg/face"
	"github.com/presensia/facegate/pkg/logging"
	"github.com/presensia/facegate/pkg/quality"
	"github.com/presensia/facegate/pkg/store"
)

// pipeline bundles the camera-facing components a capture session needs.
type pipeline struct {
	cam       *camera.Webcam
	detector  *detect.YuNetDetector
	assessor  *quality.Assessor
	extractor *face.Extractor
}

func openPipeline() (*pipeline, error) {
	cam := camera.NewWebcam(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height)
	if err := cam.Open(); err != nil {
		return nil, err
	}

	detector, err := detect.NewYuNet(detect.DefaultConfig(cfg.Recognition.DetectorModelPath))
	if err != nil {
		cam.Close()
		return nil, err
	}

	return &pipeline{
		cam:      cam,
		detector: detector,
		assessor: quality.NewAssessor(quality.Thresholds{
			MinBrightness: cfg.Quality.MinBrightness,
			MaxBrightness: cfg.Quality.MaxBrightness,
			MinSharpness:  cfg.Quality.MinSharpness,
		}),
		extractor: face.NewExtractor(face.NewDNNModel(cfg.Extractor.ModelPath), cfg.Extractor.CropPadding),
	}, nil
}

func (p *pipeline) close() {
	_ = p.extractor.Close()
	_ = p.detector.Close()
	_ = p.cam.Close()
}

func openStore() (*store.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		kv, err := store.NewSQLiteKV(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return store.NewStore(kv), nil
	default:
		kv, err := store.NewFileKV(cfg.Storage.Path, cfg.Storage.EncryptionEnabled)
		if err != nil {
			return nil, err
		}
		return store.NewStore(kv), nil
	}
}

// enrollTimeout bounds a whole guided enrollment run.
const enrollTimeout = 2 * time.Minute

// waitForSequence blocks until every enrollment position has been visited
// or the context expires.
func waitForSequence(ctx context.Context, session *enroll.Session) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("enrollment not completed: %w", ctx.Err())
		case <-ticker.C:
			if session.SequenceComplete() {
				return nil
			}
		}
	}
}

func captureConfig() capture.Config {
	return capture.Config{
		Interval:            cfg.Camera.CaptureInterval,
		SimilarityThreshold: cfg.Recognition.SimilarityThreshold,
	}
}

func cmdEnroll(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("name required\nUsage: facegate enroll <name>")
	}
	name := args[0]

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	faces, err := openStore()
	if err != nil {
		return err
	}
	if _, err := faces.Get(name); err == nil {
		fmt.Printf("'%s' is already registered; finishing enrollment will replace the existing data.\n", name)
	}

	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	session := enroll.NewSession(name, faces, enroll.Config{
		RequiredFramesPerPosition: cfg.Enrollment.RequiredFramesPerPosition,
		MinFramesPerPosition:      cfg.Enrollment.MinFramesPerPosition,
		Mirrored:                  cfg.Camera.FrontFacing,
	})

	fmt.Printf("Enrolling '%s'. Follow the prompts; press Enter to skip a position.\n", name)
	fmt.Println(enroll.PositionCenter.Instruction())

	var lastFeedback string
	ctrl := capture.NewEnrollmentController(captureConfig(), capture.NewState(),
		p.cam, p.detector, p.assessor, p.extractor, session,
		func(o enroll.Outcome) {
			if o.Feedback != lastFeedback {
				fmt.Println(o.Feedback)
				lastFeedback = o.Feedback
			}
		})

	ctx, cancel := context.WithTimeout(context.Background(), enrollTimeout)
	defer cancel()
	go ctrl.Run(ctx)

	// Enter skips the current position once it has enough frames.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if ctx.Err() != nil || session.SequenceComplete() {
				return
			}
			if err := session.Skip(); err != nil {
				fmt.Println(err)
			}
		}
	}()

	err = waitForSequence(ctx, session)
	ctrl.State().Stop()
	cancel()
	if err != nil {
		return err
	}

	if err := session.Finalize(); err != nil {
		return err
	}

	fmt.Printf("Registered '%s' with %d embeddings.\n", name, session.TotalCaptured())
	return nil
}

func cmdAddFace(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("name required\nUsage: facegate add-face <name>")
	}
	name := args[0]

	faces, err := openStore()
	if err != nil {
		return err
	}
	if _, err := faces.Get(name); err != nil {
		return fmt.Errorf("'%s' is not registered; use 'facegate enroll %s' first", name, name)
	}

	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	fmt.Println("Look straight at the camera...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("no usable frame captured: %w", err)
		}

		path, err := p.cam.Capture(ctx)
		if err != nil {
			time.Sleep(capture.DefaultInterval)
			continue
		}

		emb, err := captureEmbedding(p, path)
		os.Remove(path)
		if err != nil {
			logging.Debugf("frame rejected: %v", err)
			time.Sleep(capture.DefaultInterval)
			continue
		}

		if err := faces.AddEmbedding(name, emb); err != nil {
			return err
		}
		fmt.Printf("Added one embedding to '%s'.\n", name)
		return nil
	}
}

// captureEmbedding runs a single frame through detection, the quality
// gate, and extraction.
func captureEmbedding(p *pipeline, path string) (face.Embedding, error) {
	detections, err := p.detector.Detect(path)
	if err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		return nil, fmt.Errorf("no face detected")
	}

	if q := p.assessor.AssessFile(path); !q.OK() {
		return nil, fmt.Errorf("quality gate failed: %s", q.Issue)
	}
	return p.extractor.ExtractFile(path, detections[0].Box)
}

func cmdRecognize(args []string) error {
	faces, err := openStore()
	if err != nil {
		return err
	}
	if n, _ := faces.Count(); n == 0 {
		return fmt.Errorf("no faces registered")
	}

	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	fmt.Println("Look at the camera...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result := make(chan capture.Match, 1)
	ctrl := capture.NewRecognitionController(captureConfig(), capture.NewState(),
		p.cam, p.detector, p.assessor, p.extractor, faces,
		func(m capture.Match) {
			if m.Known {
				select {
				case result <- m:
				default:
				}
			}
		})
	go ctrl.Run(ctx)
	defer ctrl.State().Stop()

	select {
	case m := <-result:
		fmt.Printf("Recognized '%s' (similarity %.3f)\n", m.Name, m.Similarity)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("face not recognized")
	}
}

func cmdList(args []string) error {
	faces, err := openStore()
	if err != nil {
		return err
	}

	var identities []store.Identity
	if len(args) > 0 {
		identities, err = faces.Search(args[0])
	} else {
		identities, err = faces.List()
	}
	if err != nil {
		return err
	}

	if len(identities) == 0 {
		fmt.Println("No faces registered.")
		return nil
	}

	fmt.Println("Registered faces:")
	for _, id := range identities {
		fmt.Printf("  %-20s %2d embedding(s)  registered %s\n",
			id.Name, len(id.Embeddings), id.RegisteredAt.Format("2006-01-02"))
	}
	fmt.Printf("\nTotal: %d\n", len(identities))
	return nil
}

func cmdRemove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("name required\nUsage: facegate remove <name>")
	}
	name := args[0]

	faces, err := openStore()
	if err != nil {
		return err
	}
	if err := faces.Delete(name); err != nil {
		return fmt.Errorf("failed to remove '%s': %w", name, err)
	}

	fmt.Printf("Removed '%s'.\n", name)
	return nil
}

func cmdClear(args []string) error {
	faces, err := openStore()
	if err != nil {
		return err
	}

	count, _ := faces.Count()
	if err := faces.ClearAll(); err != nil {
		return err
	}
	fmt.Printf("Removed %d registered face(s).\n", count)
	return nil
}

func cmdConfig(args []string) error {
	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("[Camera]")
	fmt.Printf("  Device:           %s\n", cfg.Camera.Device)
	fmt.Printf("  Resolution:       %dx%d\n", cfg.Camera.Width, cfg.Camera.Height)
	fmt.Printf("  Front facing:     %t\n", cfg.Camera.FrontFacing)
	fmt.Printf("  Capture interval: %s\n", cfg.Camera.CaptureInterval)
	fmt.Println()
	fmt.Println("[Quality]")
	fmt.Printf("  Brightness:       %.0f..%.0f\n", cfg.Quality.MinBrightness, cfg.Quality.MaxBrightness)
	fmt.Printf("  Min sharpness:    %.0f\n", cfg.Quality.MinSharpness)
	fmt.Println()
	fmt.Println("[Extractor]")
	fmt.Printf("  Model:            %s\n", cfg.Extractor.ModelPath)
	fmt.Printf("  Crop padding:     %d\n", cfg.Extractor.CropPadding)
	fmt.Println()
	fmt.Println("[Recognition]")
	fmt.Printf("  Threshold:        %.2f\n", cfg.Recognition.SimilarityThreshold)
	fmt.Printf("  Detector model:   %s\n", cfg.Recognition.DetectorModelPath)
	fmt.Println()
	fmt.Println("[Enrollment]")
	fmt.Printf("  Frames/position:  %d (min %d to skip)\n",
		cfg.Enrollment.RequiredFramesPerPosition, cfg.Enrollment.MinFramesPerPosition)
	fmt.Println()
	fmt.Println("[Storage]")
	fmt.Printf("  Backend:          %s\n", cfg.Storage.Backend)
	fmt.Printf("  Path:             %s\n", cfg.Storage.Path)
	fmt.Printf("  Encryption:       %t\n", cfg.Storage.EncryptionEnabled)
	fmt.Println()
	fmt.Println("[Logging]")
	fmt.Printf("  Level:            %s\n", cfg.Logging.Level)
	fmt.Printf("  File:             %s\n", cfg.Logging.File)
	return nil
}
