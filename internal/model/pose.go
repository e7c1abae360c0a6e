package model

// Availability holds the confidence scores reported with a landmark.
type Availability struct {
	Visibility float32 `json:"visibility"`
	Presence   float32 `json:"presence"`
}

// Landmark is one tracked body joint in normalized image coordinates.
type Landmark struct {
	X            float32      `json:"x"`
	Y            float32      `json:"y"`
	Z            float32      `json:"z"`
	Availability Availability `json:"availability"`
}

// PoseDetection is the ordered landmark set of one detected person.
// The slice index is the joint id and must never be reordered.
type PoseDetection struct {
	Landmarks []Landmark `json:"landmarks"`
}

// DetectionResult is what the inference engine reports for one frame.
type DetectionResult struct {
	Poses []PoseDetection `json:"poses"`
}
