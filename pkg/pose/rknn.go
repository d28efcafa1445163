//go:build rknn

package pose

import (
	"context"
	"fmt"
	"image/color"

	"PostureGuard/internal/entity"
	"github.com/sirupsen/logrus"
	"github.com/swdee/go-rknnlite"
	"github.com/swdee/go-rknnlite/postprocess"
	"github.com/swdee/go-rknnlite/preprocess"
	"gocv.io/x/gocv"
)

var letterbox = color.RGBA{R: 0, G: 0, B: 0, A: 255}

// RKNNEstimator runs YOLOv8-pose on the Rockchip NPU. Runtimes are borrowed
// from a pool so concurrent requests spread across NPU cores.
type RKNNEstimator struct {
	log           *logrus.Logger
	pool          *rknnlite.Pool
	minVisibility float64
}

func NewRKNNEstimator(log *logrus.Logger, modelFile string, poolSize int, minVisibility float64) (IEstimator, error) {
	pool, err := rknnlite.NewPool(poolSize, modelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create rknn runtime pool: %w", err)
	}

	log.WithFields(logrus.Fields{
		"model":     modelFile,
		"pool_size": poolSize,
	}).Info("RKNN pose estimator ready")

	return &RKNNEstimator{
		log:           log,
		pool:          pool,
		minVisibility: minVisibility,
	}, nil
}

func (e *RKNNEstimator) Estimate(ctx context.Context, f *entity.Frame) (entity.LandmarkSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := gocv.IMDecode(f.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("failed to decode frame: empty image")
	}

	rgbImg := gocv.NewMat()
	defer rgbImg.Close()
	gocv.CvtColor(img, &rgbImg, gocv.ColorBGRToRGB)

	rt := e.pool.Get()
	defer e.pool.Return(rt)

	resizer := preprocess.NewResizer(img.Cols(), img.Rows(),
		int(rt.InputAttrs()[0].Dims[1]), int(rt.InputAttrs()[0].Dims[2]))
	defer resizer.Close()

	cropImg := rgbImg.Clone()
	defer cropImg.Close()
	resizer.LetterBoxResize(rgbImg, &cropImg, letterbox)

	outputs, err := rt.Inference([]gocv.Mat{cropImg})
	if err != nil {
		return nil, fmt.Errorf("rknn inference failed: %w", err)
	}
	defer outputs.Free()

	processor := postprocess.NewYOLOv8Pose(postprocess.YOLOv8PoseCOCOParams())
	detectObjs := processor.DetectObjects(outputs, resizer)
	detections := detectObjs.GetDetectResults()
	if len(detections) == 0 {
		return entity.LandmarkSet{}, nil
	}

	keyPoints := processor.GetPoseEstimation(detectObjs)

	best := 0
	for i, d := range detections {
		if d.Probability > detections[best].Probability {
			best = i
		}
	}
	if best >= len(keyPoints) {
		return entity.LandmarkSet{}, nil
	}

	width := float64(img.Cols())
	height := float64(img.Rows())

	set := make(entity.LandmarkSet, len(entity.COCOKeypoints))
	for i, kp := range keyPoints[best] {
		if i >= len(entity.COCOKeypoints) {
			break
		}
		set[entity.COCOKeypoints[i]] = entity.Point{
			X:          float64(kp.X) / width,
			Y:          float64(kp.Y) / height,
			Visibility: float64(kp.Score),
		}
	}

	e.log.WithFields(logrus.Fields{
		"people":     len(detections),
		"confidence": detections[best].Probability,
	}).Debug("RKNN pose estimation completed")

	return set.FilterVisibility(e.minVisibility), nil
}

func (e *RKNNEstimator) Close() error {
	e.pool.Close()
	return nil
}
