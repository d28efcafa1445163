package posture

import (
	"math"

	"PostureGuard/internal/entity"
)

const BackAngleThreshold = 150.0

type rule struct {
	name     string
	requires []entity.LandmarkName
	check    func(entity.LandmarkSet) bool
}

// rules run in this order and their issues are reported in the same order.
var rules = []rule{
	{
		name:     entity.IssueBackAngle,
		requires: []entity.LandmarkName{entity.LeftShoulder, entity.LeftHip, entity.LeftKnee},
		check: func(l entity.LandmarkSet) bool {
			angle := ComputeAngle(l[entity.LeftShoulder], l[entity.LeftHip], l[entity.LeftKnee])
			if math.IsNaN(angle) {
				return false
			}
			return angle < BackAngleThreshold
		},
	},
	{
		name:     entity.IssueKneeOverToe,
		requires: []entity.LandmarkName{entity.LeftKnee, entity.LeftAnkle},
		check: func(l entity.LandmarkSet) bool {
			return l[entity.LeftKnee].X > l[entity.LeftAnkle].X
		},
	},
}

// Evaluate applies the posture rules to one landmark set. Rules whose
// landmarks are missing are skipped. The result is never nil.
func Evaluate(landmarks entity.LandmarkSet) []string {
	issues := make([]string, 0, len(rules))
	for _, r := range rules {
		if !landmarks.Has(r.requires...) {
			continue
		}
		if r.check(landmarks) {
			issues = append(issues, r.name)
		}
	}
	return issues
}

func Analyze(landmarks entity.LandmarkSet) *entity.AnalysisResult {
	return entity.NewAnalysisResult(Evaluate(landmarks))
}
