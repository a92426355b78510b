package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"kinema/internal/config"
	"kinema/internal/perf"
	"kinema/pkg/log"
)

// FrameProcessor annotates one decoded frame. The returned Mat is owned by
// the caller.
type FrameProcessor interface {
	ProcessFrame(ctx context.Context, frame gocv.Mat) (gocv.Mat, error)
}

// ManagerOptions carries the optional collaborators. Any of them may be nil.
type ManagerOptions struct {
	Store       *TaskStore
	NSQProducer *nsq.Producer
	S3Client    *minio.Client
}

// Manager owns the video task lifecycle: accepting uploads, running the
// processing goroutines, serving status queries and reconciling persisted
// state after a restart.
type Manager struct {
	conf      *config.Config
	processor FrameProcessor
	monitor   *perf.Monitor
	store     *TaskStore
	producer  *nsq.Producer
	s3        *minio.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logrus.Entry

	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewManager(conf *config.Config, processor FrameProcessor, monitor *perf.Monitor, opts ManagerOptions) (*Manager, error) {
	for _, dir := range []string{conf.UploadDir, conf.ResultDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		conf:      conf,
		processor: processor,
		monitor:   monitor,
		store:     opts.Store,
		producer:  opts.NSQProducer,
		s3:        opts.S3Client,
		ctx:       ctx,
		cancel:    cancel,
		logger:    log.GetLogger(ctx).WithField("component", "video"),
		tasks:     make(map[string]*Task),
	}, nil
}

// Stop cancels all running task goroutines and waits for them to check out.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

// CreateTask probes the uploaded file, registers a pending task and kicks off
// processing in the background. It returns as soon as the task is queued.
func (m *Manager) CreateTask(filename, inputPath string) (*Task, error) {
	info, err := ProbeVideo(m.ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("probe video: %w", err)
	}
	if info.FrameCount <= 0 {
		return nil, fmt.Errorf("video %s has no decodable frames", filename)
	}

	id := uuid.New().String()
	task := NewTask(id, filename, inputPath, info)
	task.OutputPath = path.Join(m.conf.ResultDir, outputFileName(filename, id))

	m.mu.Lock()
	m.tasks[id] = task
	m.mu.Unlock()

	m.persist(task)
	m.publishEvent(task, "created")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.processTask(task)
	}()

	return task, nil
}

// outputFileName derives the processed file name from the upload name and a
// short task id suffix, e.g. "dance_processed_1a2b3c4d.mp4".
func outputFileName(filename, id string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_processed_%s.mp4", stem, short)
}

func (m *Manager) GetTask(id string) *Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[id]
}

// GetStatus returns the snapshot of one task, or nil when unknown.
func (m *Manager) GetStatus(id string) *Snapshot {
	task := m.GetTask(id)
	if task == nil {
		return nil
	}
	return task.Snapshot()
}

// TaskList is the status listing with per-state counters.
type TaskList struct {
	Total      int         `json:"total"`
	Pending    int         `json:"pending"`
	Processing int         `json:"processing"`
	Paused     int         `json:"paused"`
	Completed  int         `json:"completed"`
	Failed     int         `json:"failed"`
	Tasks      []*Snapshot `json:"tasks"`
}

func (m *Manager) ListTasks() *TaskList {
	m.mu.RLock()
	tasks := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.RUnlock()

	list := &TaskList{Tasks: make([]*Snapshot, 0, len(tasks))}
	for _, t := range tasks {
		s := t.Snapshot()
		list.Tasks = append(list.Tasks, s)
		list.Total++
		switch s.Status {
		case TaskStatusPending:
			list.Pending++
		case TaskStatusProcessing:
			list.Processing++
		case TaskStatusPaused:
			list.Paused++
		case TaskStatusCompleted:
			list.Completed++
		case TaskStatusFailed:
			list.Failed++
		}
	}
	return list
}

// Pause asks a processing task to hold at its next frame checkpoint.
func (m *Manager) Pause(id string) error {
	task := m.GetTask(id)
	if task == nil {
		return fmt.Errorf("task %s not found", id)
	}
	if !task.TransitStatus(TaskStatusProcessing, TaskStatusPaused) {
		return fmt.Errorf("task %s is not processing", id)
	}
	m.persist(task)
	m.publishEvent(task, "paused")
	return nil
}

// Resume releases a paused task back into processing.
func (m *Manager) Resume(id string) error {
	task := m.GetTask(id)
	if task == nil {
		return fmt.Errorf("task %s not found", id)
	}
	if !task.TransitStatus(TaskStatusPaused, TaskStatusProcessing) {
		return fmt.Errorf("task %s is not paused", id)
	}
	m.persist(task)
	m.publishEvent(task, "resumed")
	return nil
}

// Delete removes a finished task together with its files. Running tasks must
// be paused or finished first.
func (m *Manager) Delete(id string) error {
	task := m.GetTask(id)
	if task == nil {
		return fmt.Errorf("task %s not found", id)
	}
	if st := task.GetStatus(); st == TaskStatusProcessing || st == TaskStatusPending {
		return fmt.Errorf("task %s is still active", id)
	}

	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeleteTask(id); err != nil {
			m.logger.WithError(err).Errorf("delete task %s record", id)
		}
	}
	removeIfExists(task.InputPath)
	removeIfExists(task.OutputPath)
	return nil
}

// CleanupOldTasks drops terminal tasks whose run started more than maxAge ago
// and returns the number removed.
func (m *Manager) CleanupOldTasks(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.RLock()
	var stale []string
	for id, t := range m.tasks {
		t.mu.RLock()
		terminal := t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
		old := !t.StartTime.IsZero() && t.StartTime.Before(cutoff)
		t.mu.RUnlock()
		if terminal && old {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if err := m.Delete(id); err != nil {
			m.logger.WithError(err).Errorf("cleanup task %s", id)
		} else {
			removed++
		}
	}
	if removed > 0 {
		m.logger.Infof("cleaned up %d old tasks", removed)
	}
	return removed
}

// Rehydrate reloads persisted tasks after a restart. Tasks that were mid-run
// when the process died cannot be resumed and are marked failed.
func (m *Manager) Rehydrate() error {
	if m.store != nil {
		tasks, err := m.store.ListTasks()
		if err != nil {
			return fmt.Errorf("list persisted tasks: %w", err)
		}
		m.mu.Lock()
		for _, t := range tasks {
			switch t.Status {
			case TaskStatusPending, TaskStatusProcessing, TaskStatusPaused:
				t.Status = TaskStatusFailed
				t.ErrorMessage = "interrupted by restart"
				t.EndTime = time.Now()
			}
			m.tasks[t.ID] = t
		}
		m.mu.Unlock()

		for _, t := range tasks {
			m.persist(t)
		}
		m.logger.Infof("rehydrated %d tasks", len(tasks))
	}

	return m.reconcileResults()
}

// reconcileResults scans the result directory for processed files that no
// known task owns, which happens when the task database is wiped but outputs
// survive. Each orphan gets a synthetic completed task so it stays listable
// and downloadable.
func (m *Manager) reconcileResults() error {
	pattern := path.Join(m.conf.ResultDir, "*_processed_*.mp4")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[string]bool, len(m.tasks))
	for _, t := range m.tasks {
		known[t.OutputPath] = true
	}

	for _, file := range matches {
		if known[file] {
			continue
		}
		st, err := os.Stat(file)
		if err != nil || st.Size() < minOutputSize {
			continue
		}
		base := filepath.Base(file)
		idx := strings.LastIndex(base, "_processed_")
		stem := base[:idx]
		short := strings.TrimSuffix(base[idx+len("_processed_"):], ".mp4")

		id := uuid.New().String()
		task := &Task{
			ID:         id,
			Filename:   stem + filepath.Ext(file),
			OutputPath: file,
			Status:     TaskStatusCompleted,
			StartTime:  st.ModTime(),
			EndTime:    st.ModTime(),
		}
		m.tasks[id] = task
		m.logger.Infof("recovered orphan result %s (suffix %s)", base, short)
	}
	return nil
}

func (m *Manager) persist(task *Task) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveTask(task); err != nil {
		m.logger.WithError(err).Errorf("persist task %s", task.ID)
	}
}

// publishEvent emits a task lifecycle event when a producer is wired.
func (m *Manager) publishEvent(task *Task, event string) {
	if m.producer == nil || m.conf.NSQ == nil {
		return
	}
	s := task.Snapshot()
	body, err := json.Marshal(map[string]any{
		"task_id":   s.TaskID,
		"event":     event,
		"status":    s.Status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		m.logger.WithError(err).Error("marshal task event")
		return
	}
	if err := m.producer.Publish(m.conf.NSQ.Topic, body); err != nil {
		m.logger.WithError(err).Errorf("publish %s event for task %s", event, task.ID)
	}
}

func removeIfExists(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Errorf("remove %s", path)
	}
}
