// Package preview shows processed frames with their detected poses in a
// desktop window.
package preview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"runtime"

	"gocv.io/x/gocv"

	"posestream/internal/logger"
	"posestream/internal/model"
	"posestream/internal/service/source/capture"
)

const minVisibility = 0.5

// colors cycle per detected person.
var colors = []color.RGBA{
	{G: 255},
	{B: 255},
	{R: 255},
}

// Window is a stream sink. It keeps only the most recent result, so a slow
// display never holds up the pipeline.
type Window struct {
	name   string
	latest chan *model.FrameResult
	logger *logger.Logger
}

func New(name string, logger *logger.Logger) *Window {
	return &Window{
		name:   name,
		latest: make(chan *model.FrameResult, 1),
		logger: logger,
	}
}

// Offer replaces any result still waiting to be shown.
func (w *Window) Offer(result *model.FrameResult) {
	if result.Source == nil {
		return
	}
	for {
		select {
		case w.latest <- result:
			return
		default:
		}
		select {
		case <-w.latest:
		default:
		}
	}
}

// Run owns the window until ctx is cancelled or the user presses Esc.
func (w *Window) Run(ctx context.Context) {
	// HighGUI calls must stay on one OS thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	window := gocv.NewWindow(w.name)
	defer window.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case result := <-w.latest:
			if err := w.show(window, result); err != nil {
				w.logger.Warning("Preview failed: %v", err)
				continue
			}
			if window.WaitKey(1) == 27 {
				w.logger.Info("Preview closed")
				return
			}
		}
	}
}

func (w *Window) show(window *gocv.Window, result *model.FrameResult) error {
	mat, err := capture.ToMat(result.Source)
	if err != nil {
		return err
	}
	defer mat.Close()

	width, height := mat.Cols(), mat.Rows()
	for idx, pose := range result.Poses {
		c := colors[idx%len(colors)]
		for _, bone := range pose.Bones(width, height, minVisibility) {
			gocv.Line(&mat, bone[0], bone[1], c, 2)
		}
		for _, lm := range pose.Landmarks {
			if lm.Availability.Visibility < minVisibility {
				continue
			}
			gocv.Circle(&mat, lm.Point(width, height), 2, c, 2)
		}
		if len(pose.Landmarks) > 0 {
			nose := pose.Landmarks[0].Point(width, height)
			label := fmt.Sprintf("#%d", idx+1)
			if err := gocv.PutText(&mat, label, image.Pt(nose.X, nose.Y-10), gocv.FontHersheySimplex, 1.0, c, 2); err != nil {
				return fmt.Errorf("failed to draw text: %v", err)
			}
		}
	}

	window.IMShow(mat)
	return nil
}
