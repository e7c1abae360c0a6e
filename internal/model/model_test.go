package model

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func fullPose(visibility float32) PoseDetection {
	lms := make([]Landmark, LandmarkCount)
	for i := range lms {
		lms[i] = Landmark{X: 0.5, Y: 0.25, Availability: Availability{Visibility: visibility}}
	}
	return PoseDetection{Landmarks: lms}
}

func TestSkeletonConnections_InRange(t *testing.T) {
	for _, c := range SkeletonConnections {
		assert.Less(t, c[0], LandmarkCount)
		assert.Less(t, c[1], LandmarkCount)
	}
}

func TestBones_AllVisible(t *testing.T) {
	bones := fullPose(1).Bones(200, 100, 0.5)
	assert.Len(t, bones, len(SkeletonConnections))
	assert.Equal(t, [2]image.Point{image.Pt(100, 25), image.Pt(100, 25)}, bones[0])
}

func TestBones_SkipsHiddenAndMissing(t *testing.T) {
	assert.Empty(t, fullPose(0.1).Bones(200, 100, 0.5))

	partial := PoseDetection{Landmarks: fullPose(1).Landmarks[:3]}
	assert.Len(t, partial.Bones(10, 10, 0), 2)
}

func TestFrameResultClone_Independent(t *testing.T) {
	src := &Frame{Seq: 4}
	orig := &FrameResult{Timestamp: 12.5, Poses: []PoseDetection{fullPose(1)}, Source: src, Valid: true}

	clone := orig.Clone()
	if diff := cmp.Diff(orig, clone); diff != "" {
		t.Errorf("clone differs (-orig +clone):\n%s", diff)
	}

	clone.Poses[0].Landmarks[0].X = 9
	assert.Equal(t, float32(0.5), orig.Poses[0].Landmarks[0].X)
	assert.Same(t, src, clone.Source)
}
