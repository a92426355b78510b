package video

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"kinema/internal/perf"
	"kinema/internal/utils"
	"kinema/pkg/log"
)

const (
	pausePollInterval = 200 * time.Millisecond
	persistEvery      = 30
	// minOutputSize rejects encoder output too small to be a playable video.
	minOutputSize = 1024
	// contentionSleep is the extra yield taken under elevated load.
	contentionSleep = 50 * time.Millisecond
)

// processTask runs one video job to completion. Detection failures on single
// frames degrade to passing the raw frame through; writer and decode failures
// fail the whole task.
func (m *Manager) processTask(task *Task) {
	logger := log.TaskLogger(m.ctx, task.ID)

	capture, err := gocv.VideoCaptureFile(task.InputPath)
	if err != nil {
		m.failTask(task, fmt.Sprintf("open video: %v", err))
		return
	}
	defer capture.Close()

	totalFrames := task.Info.FrameCount
	task.MarkStarted(totalFrames)
	m.persist(task)
	m.publishEvent(task, "started")
	logger.Infof("processing %d frames of %s", totalFrames, task.Filename)

	var writer *fallbackWriter
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	processed := 0
	for {
		select {
		case <-m.ctx.Done():
			m.failTask(task, "interrupted by shutdown")
			return
		default:
		}

		if !m.waitWhilePaused(task) {
			m.failTask(task, "interrupted by shutdown")
			return
		}

		if ok := capture.Read(&frame); !ok {
			break
		}
		if frame.Empty() {
			continue
		}

		annotated, err := m.processor.ProcessFrame(m.ctx, frame)
		if err != nil {
			logger.WithError(err).Warnf("frame %d detection failed, passing through", processed)
			annotated = frame.Clone()
		}

		if writer == nil {
			writer, err = m.openWriter(task, annotated.Cols(), annotated.Rows(), logger)
			if err != nil {
				annotated.Close()
				m.failTask(task, fmt.Sprintf("open writer: %v", err))
				return
			}
		}

		err = writer.Write(annotated)
		annotated.Close()
		if err != nil {
			m.failTask(task, fmt.Sprintf("write frame %d: %v", processed, err))
			return
		}

		processed++
		task.MarkProgress(processed)
		if processed%persistEvery == 0 {
			m.persist(task)
		}

		m.yield(processed)
	}

	if writer == nil {
		m.failTask(task, "no decodable frames in input")
		return
	}
	if err := writer.Close(); err != nil {
		writer = nil
		m.failTask(task, fmt.Sprintf("finalize output: %v", err))
		return
	}
	writer = nil

	if err := validateOutput(task.OutputPath); err != nil {
		m.failTask(task, fmt.Sprintf("output validation: %v", err))
		return
	}

	task.MarkCompleted(task.OutputPath)
	m.persist(task)
	m.publishEvent(task, "completed")
	logger.Infof("task completed, %d frames written to %s", processed, task.OutputPath)

	m.uploadResult(task)
}

// waitWhilePaused blocks while the task is paused. It returns false when the
// manager shuts down during the wait.
func (m *Manager) waitWhilePaused(task *Task) bool {
	for task.GetStatus() == TaskStatusPaused {
		select {
		case <-m.ctx.Done():
			return false
		case <-time.After(pausePollInterval):
		}
	}
	return true
}

// openWriter builds the encoding pipeline for the task output: ffmpeg as the
// primary encoder with the OpenCV writer standing by as fallback. When ffmpeg
// cannot start at all the fallback takes over immediately.
func (m *Manager) openWriter(task *Task, width, height int, logger *logrus.Entry) (*fallbackWriter, error) {
	fps := task.Info.FPSFloat
	makeFallback := func() (FrameWriter, error) {
		return NewOpenCVWriter(task.OutputPath, width, height, fps)
	}

	primary, err := NewFFmpegWriter(m.ctx, task.OutputPath, width, height, fps, logger)
	if err != nil {
		logger.WithError(err).Warn("ffmpeg unavailable, using opencv encoder")
		fb, fbErr := makeFallback()
		if fbErr != nil {
			return nil, fbErr
		}
		w := newFallbackWriter(fb, makeFallback, logger)
		w.fellBack = true
		return w, nil
	}
	return newFallbackWriter(primary, makeFallback, logger), nil
}

// yield paces the frame loop against system load. Light sleeps keep other
// requests responsive on every other frame, longer ones every tenth, plus an
// extra pause every fifth frame when the monitor reports contention.
func (m *Manager) yield(processed int) {
	rec := m.monitor.GetRecommendations()

	for !rec.ShouldProcess {
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(rec.SleepInterval):
		}
		rec = m.monitor.GetRecommendations()
	}

	switch {
	case processed%10 == 0:
		time.Sleep(4 * rec.SleepInterval)
	case processed%2 == 0:
		time.Sleep(rec.SleepInterval)
	}
	if processed%5 == 0 && m.monitor.CurrentStatus() != perf.StatusOK {
		time.Sleep(contentionSleep)
	}
}

func (m *Manager) failTask(task *Task, reason string) {
	log.TaskLogger(m.ctx, task.ID).Error(reason)
	task.MarkFailed(reason)
	m.persist(task)
	m.publishEvent(task, "failed")
}

// validateOutput sanity checks the encoded file: it must exist, carry a
// plausible size and be decodable with sane stream properties.
func validateOutput(outputPath string) error {
	st, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("output file missing: %w", err)
	}
	if st.Size() < minOutputSize {
		return fmt.Errorf("output file too small (%d bytes)", st.Size())
	}

	capture, err := gocv.VideoCaptureFile(outputPath)
	if err != nil {
		return fmt.Errorf("output not openable: %w", err)
	}
	defer capture.Close()

	w := int(capture.Get(gocv.VideoCaptureFrameWidth))
	h := int(capture.Get(gocv.VideoCaptureFrameHeight))
	if w <= 0 || h <= 0 {
		return fmt.Errorf("output has invalid dimensions %dx%d", w, h)
	}
	if frames := int(capture.Get(gocv.VideoCaptureFrameCount)); frames <= 0 {
		return fmt.Errorf("output has no decodable frames")
	}
	if fps := capture.Get(gocv.VideoCaptureFPS); fps <= 0 {
		return fmt.Errorf("output has invalid fps %f", fps)
	}
	return nil
}

// uploadResult copies the finished output to object storage when configured.
// Upload failures are logged but never fail a completed task.
func (m *Manager) uploadResult(task *Task) {
	if m.s3 == nil || m.conf.S3 == nil {
		return
	}

	remotePath := path.Join(
		time.Now().Format("2006/01/02"),
		path.Base(task.OutputPath),
	)
	if err := utils.UploadFileToMinio(m.ctx, m.s3, m.conf.S3.Bucket, task.OutputPath, remotePath); err != nil {
		m.logger.WithError(err).Errorf("upload result of task %s", task.ID)
		return
	}
	m.logger.Infof("uploaded result of task %s to %s", task.ID, remotePath)
}
