package video

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const writerCloseTimeout = 30 * time.Second

// FrameWriter consumes BGR frames and encodes them to a video file.
type FrameWriter interface {
	Write(frame gocv.Mat) error
	Close() error
}

// ffmpegWriter pipes raw BGR frames into an ffmpeg child process encoding
// H.264. The done channel closes when the process exits so Write can detect a
// dead muxer before pushing the next frame.
type ffmpegWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	done   chan error
	width  int
	height int
	logger *logrus.Entry
}

// NewFFmpegWriter starts an ffmpeg process encoding rawvideo from stdin to an
// H.264 mp4. Odd input dimensions are padded to even since yuv420p requires
// them.
func NewFFmpegWriter(ctx context.Context, path string, width, height int, fps float64, logger *logrus.Entry) (FrameWriter, error) {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-vcodec", "rawvideo",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-pix_fmt", "bgr24",
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-an",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-vcodec", "libx264",
		"-profile:v", "baseline",
		"-level", "3.1",
		"-pix_fmt", "yuv420p",
		"-crf", "23",
		"-preset", "medium",
		"-movflags", "+faststart",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	logger.WithField("pid", cmd.Process.Pid).Info("ffmpeg encoder started")

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	return &ffmpegWriter{
		cmd:    cmd,
		stdin:  stdin,
		done:   done,
		width:  width,
		height: height,
		logger: logger,
	}, nil
}

func (w *ffmpegWriter) Write(frame gocv.Mat) error {
	select {
	case err := <-w.done:
		return fmt.Errorf("ffmpeg process exited early: %v", err)
	default:
	}

	if frame.Cols() != w.width || frame.Rows() != w.height {
		return fmt.Errorf("frame size %dx%d does not match writer %dx%d",
			frame.Cols(), frame.Rows(), w.width, w.height)
	}

	if _, err := w.stdin.Write(frame.ToBytes()); err != nil {
		return fmt.Errorf("write frame to ffmpeg: %w", err)
	}
	return nil
}

func (w *ffmpegWriter) Close() error {
	w.stdin.Close()

	select {
	case err := <-w.done:
		if err != nil {
			return fmt.Errorf("ffmpeg exited with error: %w", err)
		}
		return nil
	case <-time.After(writerCloseTimeout):
		w.logger.Warn("ffmpeg did not exit in time, killing")
		if w.cmd.Process != nil {
			w.cmd.Process.Kill()
		}
		<-w.done
		return fmt.Errorf("ffmpeg close timed out")
	}
}

// opencvWriter encodes through gocv's VideoWriter with the mp4v codec. It
// produces larger files than the ffmpeg path but has no external process to
// fail.
type opencvWriter struct {
	writer *gocv.VideoWriter
}

func NewOpenCVWriter(path string, width, height int, fps float64) (FrameWriter, error) {
	vw, err := gocv.VideoWriterFile(path, "mp4v", fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer: %w", err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("video writer failed to open %s", path)
	}
	return &opencvWriter{writer: vw}, nil
}

func (w *opencvWriter) Write(frame gocv.Mat) error {
	return w.writer.Write(frame)
}

func (w *opencvWriter) Close() error {
	return w.writer.Close()
}

// fallbackWriter delegates to a primary writer and swaps in a fallback when
// the primary dies mid-stream. The frame that exposed the failure is
// resubmitted to the fallback so no frame is silently dropped.
type fallbackWriter struct {
	current      FrameWriter
	makeFallback func() (FrameWriter, error)
	fellBack     bool
	logger       *logrus.Entry
}

func newFallbackWriter(primary FrameWriter, makeFallback func() (FrameWriter, error), logger *logrus.Entry) *fallbackWriter {
	return &fallbackWriter{
		current:      primary,
		makeFallback: makeFallback,
		logger:       logger,
	}
}

func (w *fallbackWriter) Write(frame gocv.Mat) error {
	err := w.current.Write(frame)
	if err == nil {
		return nil
	}
	if w.fellBack {
		return err
	}

	w.logger.WithError(err).Warn("primary writer failed, switching to fallback encoder")
	w.current.Close()

	fb, fbErr := w.makeFallback()
	if fbErr != nil {
		return fmt.Errorf("fallback writer: %w", fbErr)
	}
	w.current = fb
	w.fellBack = true
	return w.current.Write(frame)
}

func (w *fallbackWriter) Close() error {
	return w.current.Close()
}
