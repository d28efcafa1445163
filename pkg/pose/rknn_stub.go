//go:build !rknn

package pose

import "github.com/sirupsen/logrus"

func NewRKNNEstimator(log *logrus.Logger, modelFile string, poolSize int, minVisibility float64) (IEstimator, error) {
	log.Errorf("POSE_BACKEND=rknn requested but binary was built without the rknn tag (model %s)", modelFile)
	return nil, ErrBackendDisabled
}
