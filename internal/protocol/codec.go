// Package protocol encodes pose results into the flatbuffers DetectionMessage
// envelope and frames them for stream transports.
package protocol

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"posestream/internal/model"
	"posestream/internal/protocol/detection"
)

var (
	ErrMalformed      = errors.New("malformed detection message")
	ErrUnknownPayload = errors.New("unknown detection payload type")
)

const initialBuilderSize = 1024

// Encoder turns FrameResults into wire messages. It reuses one builder and is
// not safe for concurrent use.
type Encoder struct {
	builder *flatbuffers.Builder
}

// NewEncoder creates an Encoder with a preallocated builder.
func NewEncoder() *Encoder {
	return &Encoder{builder: flatbuffers.NewBuilder(initialBuilderSize)}
}

// Encode serializes result. It returns nil for invalid results, which the
// caller must skip. Zero poses produce the Empty variant; otherwise only the
// first pose is written.
func (e *Encoder) Encode(result *model.FrameResult) []byte {
	if result == nil || !result.Valid {
		return nil
	}

	b := e.builder
	b.Reset()

	if len(result.Poses) == 0 {
		detection.DetectionMessageStart(b)
		detection.DetectionMessageAddPayloadType(b, detection.DetectionPayloadEmpty)
		b.Finish(detection.DetectionMessageEnd(b))
		return finished(b)
	}

	landmarks := result.Poses[0].Landmarks
	offsets := make([]flatbuffers.UOffsetT, len(landmarks))
	for i, lm := range landmarks {
		detection.AvailabilityStart(b)
		detection.AvailabilityAddVisibility(b, lm.Availability.Visibility)
		detection.AvailabilityAddPresence(b, lm.Availability.Presence)
		availability := detection.AvailabilityEnd(b)

		detection.LandmarkStart(b)
		detection.LandmarkAddX(b, lm.X)
		detection.LandmarkAddY(b, lm.Y)
		detection.LandmarkAddZ(b, lm.Z)
		detection.LandmarkAddAvailability(b, availability)
		offsets[i] = detection.LandmarkEnd(b)
	}

	// vectors are built back to front
	detection.PoseDetectionResultStartLandmarksVector(b, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	vector := b.EndVector(len(offsets))

	detection.PoseDetectionResultStart(b)
	detection.PoseDetectionResultAddLandmarks(b, vector)
	pose := detection.PoseDetectionResultEnd(b)

	detection.DetectionMessageStart(b)
	detection.DetectionMessageAddPayloadType(b, detection.DetectionPayloadPoseDetectionResult)
	detection.DetectionMessageAddPayload(b, pose)
	detection.FinishDetectionMessageBuffer(b, detection.DetectionMessageEnd(b))
	return finished(b)
}

// finished copies the builder output; the builder buffer is reused by the
// next Encode call.
func finished(b *flatbuffers.Builder) []byte {
	out := b.FinishedBytes()
	msg := make([]byte, len(out))
	copy(msg, out)
	return msg
}

// Message is a decoded DetectionMessage. Pose is nil for the Empty variant.
type Message struct {
	Payload detection.DetectionPayload
	Pose    *model.PoseDetection
}

// Decode parses a DetectionMessage. A landmark without an availability record
// decodes with zero scores.
func Decode(buf []byte) (msg *Message, err error) {
	if len(buf) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(buf))
	}

	// out-of-range offsets in a corrupt buffer panic inside the accessors
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	root := detection.GetRootAsDetectionMessage(buf, 0)
	switch root.PayloadType() {
	case detection.DetectionPayloadEmpty:
		return &Message{Payload: detection.DetectionPayloadEmpty}, nil

	case detection.DetectionPayloadPoseDetectionResult:
		var table flatbuffers.Table
		if !root.Payload(&table) {
			return nil, fmt.Errorf("%w: pose payload missing", ErrMalformed)
		}
		var result detection.PoseDetectionResult
		result.Init(table.Bytes, table.Pos)

		n := result.LandmarksLength()
		pose := &model.PoseDetection{Landmarks: make([]model.Landmark, n)}
		var lm detection.Landmark
		var av detection.Availability
		for i := 0; i < n; i++ {
			result.Landmarks(&lm, i)
			out := model.Landmark{X: lm.X(), Y: lm.Y(), Z: lm.Z()}
			if lm.Availability(&av) != nil {
				out.Availability = model.Availability{
					Visibility: av.Visibility(),
					Presence:   av.Presence(),
				}
			}
			pose.Landmarks[i] = out
		}
		return &Message{Payload: detection.DetectionPayloadPoseDetectionResult, Pose: pose}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPayload, root.PayloadType())
	}
}
