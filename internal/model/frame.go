package model

import "time"

// Frame is a raw image sample as delivered by a frame source.
type Frame struct {
	Seq        int64
	Data       []byte
	Width      int
	Height     int
	Type       int // OpenCV mat type of Data
	CapturedAt time.Time
}

// FrameResult is produced once per processed frame.
// Valid=false marks an acquisition failure; such results are never serialized.
type FrameResult struct {
	Timestamp float64 // presentation time in milliseconds
	Poses     []PoseDetection
	Source    *Frame
	Valid     bool
}

// Clone returns a copy that shares no pose slices with r.
// The source frame pointer is shared; sinks must treat it as read-only.
func (r *FrameResult) Clone() *FrameResult {
	out := &FrameResult{
		Timestamp: r.Timestamp,
		Source:    r.Source,
		Valid:     r.Valid,
	}
	if r.Poses != nil {
		out.Poses = make([]PoseDetection, len(r.Poses))
		for i, p := range r.Poses {
			out.Poses[i] = PoseDetection{Landmarks: append([]Landmark(nil), p.Landmarks...)}
		}
	}
	return out
}
