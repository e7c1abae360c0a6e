// Package capture reads frames from cameras and video files with OpenCV.
package capture

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"posestream/internal/logger"
	"posestream/internal/model"
	"posestream/internal/service/source"
)

// reader wraps a VideoCapture and the Mat it reads into.
type reader struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	img    gocv.Mat
	seq    int64
	closed bool
}

func (r *reader) next() (*model.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	if ok := r.cap.Read(&r.img); !ok || r.img.Empty() {
		return nil, false
	}
	r.seq++
	return &model.Frame{
		Seq:        r.seq,
		Data:       r.img.ToBytes(),
		Width:      r.img.Cols(),
		Height:     r.img.Rows(),
		Type:       int(r.img.Type()),
		CapturedAt: time.Now(),
	}, true
}

func (r *reader) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.img.Close()
	return r.cap.Close()
}

// CameraSource reads from a local capture device.
type CameraSource struct {
	reader
	deviceID int
	policy   *source.LivePolicy
}

// OpenCamera opens device deviceID and requests the given resolution.
func OpenCamera(deviceID, width, height int, logger *logger.Logger) (*CameraSource, error) {
	vc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d is not available", deviceID)
	}
	if width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	logger.Info("Opened camera %d at %.0fx%.0f", deviceID,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight))

	return &CameraSource{
		reader:   reader{cap: vc, img: gocv.NewMat()},
		deviceID: deviceID,
		policy:   source.NewLivePolicy(nil),
	}, nil
}

// Next reads one frame. A failed read means the device is gone.
func (s *CameraSource) Next() (*model.Frame, error) {
	frame, ok := s.next()
	if !ok {
		return nil, fmt.Errorf("camera %d: %w", s.deviceID, source.ErrReadFailed)
	}
	return frame, nil
}

func (s *CameraSource) Kind() source.Kind                       { return source.KindLive }
func (s *CameraSource) TimestampPolicy() source.TimestampPolicy { return s.policy }
func (s *CameraSource) Close() error                            { return s.close() }

// FileSource replays a video file.
type FileSource struct {
	reader
	path   string
	policy *source.FileReplayPolicy
}

// OpenFile opens path for replay. fps overrides the container frame rate
// when positive.
func OpenFile(path string, fps float64, logger *logger.Logger) (*FileSource, error) {
	vc, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video %s could not be opened", path)
	}

	if fps <= 0 {
		fps = vc.Get(gocv.VideoCaptureFPS)
	}
	policy, err := source.NewFileReplayPolicy(fps)
	if err != nil {
		vc.Close()
		return nil, fmt.Errorf("video %s: %w", path, err)
	}

	logger.Info("Opened video %s (%.2f fps, %.0f frames)", path, fps, vc.Get(gocv.VideoCaptureFrameCount))

	return &FileSource{
		reader: reader{cap: vc, img: gocv.NewMat()},
		path:   path,
		policy: policy,
	}, nil
}

// Next reads one frame and returns io.EOF once the file is exhausted.
func (s *FileSource) Next() (*model.Frame, error) {
	frame, ok := s.next()
	if !ok {
		return nil, io.EOF
	}
	return frame, nil
}

func (s *FileSource) Kind() source.Kind                       { return source.KindFile }
func (s *FileSource) TimestampPolicy() source.TimestampPolicy { return s.policy }
func (s *FileSource) Close() error                            { return s.close() }
