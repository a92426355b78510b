package video

import (
	"sync"
	"time"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusPaused     TaskStatus = "paused"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// VideoInfo is the probed metadata of an uploaded video. FPS keeps the raw
// rational form alongside the evaluated float.
type VideoInfo struct {
	Duration   float64 `json:"duration"`
	FPS        string  `json:"fps"`
	FPSFloat   float64 `json:"fps_float"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameCount int     `json:"frame_count"`
	FormatName string  `json:"format_name,omitempty"`
	CodecName  string  `json:"codec_name,omitempty"`
	PixFmt     string  `json:"pix_fmt,omitempty"`
	BitRate    int64   `json:"bit_rate,omitempty"`
	SizeBytes  int64   `json:"size_bytes"`
}

// Task is one queued video processing job. All mutation goes through the
// methods so status readers and the processing goroutine never race.
type Task struct {
	mu sync.RWMutex

	ID              string
	Filename        string
	InputPath       string
	OutputPath      string
	Status          TaskStatus
	TotalFrames     int
	ProcessedFrames int
	Info            *VideoInfo
	StartTime       time.Time
	EndTime         time.Time
	ErrorMessage    string
}

// Snapshot is the externally visible JSON view of a task. ProcessingTime is
// the wall time of a finished run; ElapsedTime tracks a run still going.
type Snapshot struct {
	TaskID          string     `json:"task_id"`
	Status          TaskStatus `json:"status"`
	Progress        float64    `json:"progress"`
	TotalFrames     int        `json:"total_frames"`
	ProcessedFrames int        `json:"processed_frames"`
	VideoInfo       *VideoInfo `json:"video_info,omitempty"`
	StartTime       string     `json:"start_time,omitempty"`
	ProcessingTime  float64    `json:"processing_time,omitempty"`
	ElapsedTime     float64    `json:"elapsed_time,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	OutputFile      string     `json:"output_file,omitempty"`
}

func NewTask(id, filename, inputPath string, info *VideoInfo) *Task {
	return &Task{
		ID:        id,
		Filename:  filename,
		InputPath: inputPath,
		Status:    TaskStatusPending,
		Info:      info,
	}
}

func (t *Task) GetStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

func (t *Task) SetStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = status
}

// TransitStatus moves the task from one status to another atomically and
// reports whether the transition applied.
func (t *Task) TransitStatus(from, to TaskStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != from {
		return false
	}
	t.Status = to
	return true
}

func (t *Task) MarkStarted(totalFrames int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusProcessing
	t.TotalFrames = totalFrames
	t.ProcessedFrames = 0
	t.StartTime = time.Now()
}

func (t *Task) MarkProgress(processed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ProcessedFrames = processed
}

// MarkCompleted finishes the task. The frame counters are reconciled so a
// completed task always reports 100% progress, even when the container
// metadata overestimated the decodable frame count.
func (t *Task) MarkCompleted(outputPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusCompleted
	t.OutputPath = outputPath
	t.ProcessedFrames = t.TotalFrames
	t.EndTime = time.Now()
}

func (t *Task) MarkFailed(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusFailed
	t.ErrorMessage = reason
	t.EndTime = time.Now()
}

// Snapshot builds the JSON view under the task lock.
func (t *Task) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := &Snapshot{
		TaskID:          t.ID,
		Status:          t.Status,
		TotalFrames:     t.TotalFrames,
		ProcessedFrames: t.ProcessedFrames,
		VideoInfo:       t.Info,
		ErrorMessage:    t.ErrorMessage,
	}

	if t.TotalFrames > 0 {
		s.Progress = float64(t.ProcessedFrames) / float64(t.TotalFrames) * 100
		if s.Progress > 100 {
			s.Progress = 100
		}
	}
	if !t.StartTime.IsZero() {
		s.StartTime = t.StartTime.Format(time.RFC3339)
		switch t.Status {
		case TaskStatusCompleted, TaskStatusFailed:
			s.ProcessingTime = t.EndTime.Sub(t.StartTime).Seconds()
		default:
			s.ElapsedTime = time.Since(t.StartTime).Seconds()
		}
	}
	if t.Status == TaskStatusCompleted {
		s.OutputFile = t.OutputPath
	}
	return s
}
