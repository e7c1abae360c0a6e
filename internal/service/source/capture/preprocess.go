package capture

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"posestream/internal/model"
	"posestream/internal/service/source"
)

// ToMat copies frame into a new Mat. The caller closes it.
func ToMat(frame *model.Frame) (gocv.Mat, error) {
	view, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatType(frame.Type), frame.Data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build mat from frame %d: %w", frame.Seq, err)
	}
	defer view.Close()
	// the view may share frame.Data; drawing must not reach it
	return view.Clone(), nil
}

// fromMat returns a copy of frame carrying the pixels of mat.
func fromMat(frame *model.Frame, mat gocv.Mat) *model.Frame {
	out := *frame
	out.Data = mat.ToBytes()
	out.Width = mat.Cols()
	out.Height = mat.Rows()
	out.Type = int(mat.Type())
	return &out
}

// Mirror flips frames horizontally, the way a webcam preview is expected to look.
func Mirror() source.Preprocessor {
	return func(frame *model.Frame) (*model.Frame, error) {
		src, err := ToMat(frame)
		if err != nil {
			return nil, err
		}
		defer src.Close()

		dst := gocv.NewMat()
		defer dst.Close()
		gocv.Flip(src, &dst, 1)
		return fromMat(frame, dst), nil
	}
}

// HighlightROI outlines the region of interest on each frame.
func HighlightROI(roi image.Rectangle) source.Preprocessor {
	green := color.RGBA{G: 255}
	return func(frame *model.Frame) (*model.Frame, error) {
		mat, err := ToMat(frame)
		if err != nil {
			return nil, err
		}
		defer mat.Close()

		rect := roi.Intersect(image.Rect(0, 0, frame.Width, frame.Height))
		if rect.Empty() {
			return frame, nil
		}
		if err := gocv.Rectangle(&mat, rect, green, 2); err != nil {
			return nil, fmt.Errorf("failed to draw roi: %v", err)
		}
		return fromMat(frame, mat), nil
	}
}
