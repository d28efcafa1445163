package entity

type LandmarkName string

const (
	Nose           LandmarkName = "NOSE"
	LeftEyeInner   LandmarkName = "LEFT_EYE_INNER"
	LeftEye        LandmarkName = "LEFT_EYE"
	LeftEyeOuter   LandmarkName = "LEFT_EYE_OUTER"
	RightEyeInner  LandmarkName = "RIGHT_EYE_INNER"
	RightEye       LandmarkName = "RIGHT_EYE"
	RightEyeOuter  LandmarkName = "RIGHT_EYE_OUTER"
	LeftEar        LandmarkName = "LEFT_EAR"
	RightEar       LandmarkName = "RIGHT_EAR"
	MouthLeft      LandmarkName = "MOUTH_LEFT"
	MouthRight     LandmarkName = "MOUTH_RIGHT"
	LeftShoulder   LandmarkName = "LEFT_SHOULDER"
	RightShoulder  LandmarkName = "RIGHT_SHOULDER"
	LeftElbow      LandmarkName = "LEFT_ELBOW"
	RightElbow     LandmarkName = "RIGHT_ELBOW"
	LeftWrist      LandmarkName = "LEFT_WRIST"
	RightWrist     LandmarkName = "RIGHT_WRIST"
	LeftPinky      LandmarkName = "LEFT_PINKY"
	RightPinky     LandmarkName = "RIGHT_PINKY"
	LeftIndex      LandmarkName = "LEFT_INDEX"
	RightIndex     LandmarkName = "RIGHT_INDEX"
	LeftThumb      LandmarkName = "LEFT_THUMB"
	RightThumb     LandmarkName = "RIGHT_THUMB"
	LeftHip        LandmarkName = "LEFT_HIP"
	RightHip       LandmarkName = "RIGHT_HIP"
	LeftKnee       LandmarkName = "LEFT_KNEE"
	RightKnee      LandmarkName = "RIGHT_KNEE"
	LeftAnkle      LandmarkName = "LEFT_ANKLE"
	RightAnkle     LandmarkName = "RIGHT_ANKLE"
	LeftHeel       LandmarkName = "LEFT_HEEL"
	RightHeel      LandmarkName = "RIGHT_HEEL"
	LeftFootIndex  LandmarkName = "LEFT_FOOT_INDEX"
	RightFootIndex LandmarkName = "RIGHT_FOOT_INDEX"
)

// BlazePoseLandmarks lists the 33 body landmarks in the index order pose
// backends emit them.
var BlazePoseLandmarks = []LandmarkName{
	Nose, LeftEyeInner, LeftEye, LeftEyeOuter, RightEyeInner, RightEye, RightEyeOuter,
	LeftEar, RightEar, MouthLeft, MouthRight,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist, RightWrist,
	LeftPinky, RightPinky, LeftIndex, RightIndex, LeftThumb, RightThumb,
	LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle,
	LeftHeel, RightHeel, LeftFootIndex, RightFootIndex,
}

// COCOKeypoints maps the 17 COCO keypoint indices to landmark names.
var COCOKeypoints = []LandmarkName{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist, RightWrist,
	LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

var landmarkLookup = func() map[LandmarkName]struct{} {
	m := make(map[LandmarkName]struct{}, len(BlazePoseLandmarks))
	for _, name := range BlazePoseLandmarks {
		m[name] = struct{}{}
	}
	return m
}()

func IsValidLandmarkName(name string) bool {
	_, ok := landmarkLookup[LandmarkName(name)]
	return ok
}

func LandmarkAt(index int) (LandmarkName, bool) {
	if index < 0 || index >= len(BlazePoseLandmarks) {
		return "", false
	}
	return BlazePoseLandmarks[index], true
}

type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty"`
}

// LandmarkSet holds the detected landmarks of one body in one frame. A name
// missing from the map was not detected.
type LandmarkSet map[LandmarkName]Point

func (s LandmarkSet) Get(name LandmarkName) (Point, bool) {
	p, ok := s[name]
	return p, ok
}

func (s LandmarkSet) Has(names ...LandmarkName) bool {
	for _, name := range names {
		if _, ok := s[name]; !ok {
			return false
		}
	}
	return true
}

// FilterVisibility returns a copy without the points whose visibility is below
// minVisibility.
func (s LandmarkSet) FilterVisibility(minVisibility float64) LandmarkSet {
	out := make(LandmarkSet, len(s))
	for name, p := range s {
		if p.Visibility < minVisibility {
			continue
		}
		out[name] = p
	}
	return out
}
