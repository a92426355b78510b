package video

import (
	"context"
	"image"
	"image/color"
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"kinema/internal/config"
	"kinema/internal/perf"
	"kinema/pkg/log"
)

// passThroughProcessor stands in for the detection pipeline.
type passThroughProcessor struct{}

func (passThroughProcessor) ProcessFrame(ctx context.Context, frame gocv.Mat) (gocv.Mat, error) {
	return frame.Clone(), nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	conf := config.DefaultConfig()
	base := t.TempDir()
	conf.UploadDir = path.Join(base, "uploads")
	conf.ResultDir = path.Join(base, "results")
	conf.TaskDBDir = path.Join(base, "taskdb")
	return conf
}

func newTestManager(t *testing.T, conf *config.Config, store *TaskStore) *Manager {
	t.Helper()
	mgr, err := NewManager(conf, passThroughProcessor{}, perf.NewMonitor(&conf.Perf), ManagerOptions{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

// writeTestVideo encodes a short clip with per-frame motion so the result is
// large enough to pass output validation.
func writeTestVideo(t *testing.T, dir string, frames int) string {
	t.Helper()
	file := path.Join(dir, "clip.mp4")
	vw, err := gocv.VideoWriterFile(file, "mp4v", 30, 640, 480, true)
	if err != nil {
		t.Fatal(err)
	}
	if !vw.IsOpened() {
		t.Skip("mp4v encoder not available")
	}

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	for i := 0; i < frames; i++ {
		frame.SetTo(gocv.NewScalar(float64(i*9%255), 60, 120, 0))
		gocv.Circle(&frame, image.Pt(50+i*30, 240), 40, color.RGBA{R: 255, G: 255}, -1)
		gocv.Rectangle(&frame, image.Rect(i*20, 30, i*20+90, 140), color.RGBA{B: 255}, -1)
		if err := vw.Write(frame); err != nil {
			t.Fatal(err)
		}
	}
	if err := vw.Close(); err != nil {
		t.Fatal(err)
	}
	return file
}

func waitForStatus(t *testing.T, mgr *Manager, id string, want TaskStatus, timeout time.Duration) *Snapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s := mgr.GetStatus(id)
		if s == nil {
			t.Fatalf("task %s disappeared", id)
		}
		if s.Status == want {
			return s
		}
		if s.Status == TaskStatusFailed && want != TaskStatusFailed {
			t.Fatalf("task failed: %s", s.ErrorMessage)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("task %s never reached %s: %+v", id, want, mgr.GetStatus(id))
	return nil
}

func TestProcessVideoEndToEnd(t *testing.T) {
	conf := testConfig(t)
	mgr := newTestManager(t, conf, nil)
	input := writeTestVideo(t, t.TempDir(), 10)

	task, err := mgr.CreateTask("clip.mp4", input)
	if err != nil {
		t.Fatal(err)
	}

	s := waitForStatus(t, mgr, task.ID, TaskStatusCompleted, 30*time.Second)
	if s.ProcessedFrames == 0 {
		t.Error("no frames processed")
	}
	if s.Progress != 100 {
		t.Errorf("progress %f, expected 100", s.Progress)
	}
	if s.ProcessedFrames != s.TotalFrames {
		t.Errorf("frame counters %d/%d, expected equal on completion", s.ProcessedFrames, s.TotalFrames)
	}
	if s.OutputFile == "" {
		t.Fatal("no output file")
	}
	if st, err := os.Stat(s.OutputFile); err != nil {
		t.Fatal(err)
	} else if st.Size() < minOutputSize {
		t.Errorf("output only %d bytes", st.Size())
	}
	if filepath.Dir(s.OutputFile) != filepath.Clean(conf.ResultDir) {
		t.Errorf("output %s not under result dir", s.OutputFile)
	}

	list := mgr.ListTasks()
	if list.Total != 1 || list.Completed != 1 {
		t.Errorf("list summary %+v, expected 1 completed", list)
	}
}

func TestCreateTaskRejectsGarbage(t *testing.T) {
	conf := testConfig(t)
	mgr := newTestManager(t, conf, nil)

	garbage := path.Join(t.TempDir(), "not_a_video.mp4")
	if err := os.WriteFile(garbage, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := mgr.CreateTask("not_a_video.mp4", garbage); err == nil {
		t.Fatal("expected error for a non-video file")
	}
}

func TestPauseResumeLifecycle(t *testing.T) {
	conf := testConfig(t)
	mgr := newTestManager(t, conf, nil)

	if err := mgr.Pause("nope"); err == nil {
		t.Error("pause of unknown task succeeded")
	}

	task := NewTask("manual", "x.mp4", "/tmp/x.mp4", &VideoInfo{FrameCount: 10})
	task.MarkStarted(10)
	mgr.mu.Lock()
	mgr.tasks[task.ID] = task
	mgr.mu.Unlock()

	if err := mgr.Pause(task.ID); err != nil {
		t.Fatal(err)
	}
	if task.GetStatus() != TaskStatusPaused {
		t.Fatalf("status %s after pause", task.GetStatus())
	}
	if err := mgr.Pause(task.ID); err == nil {
		t.Error("double pause succeeded")
	}

	resumed := make(chan struct{})
	go func() {
		time.Sleep(150 * time.Millisecond)
		if err := mgr.Resume(task.ID); err != nil {
			t.Error(err)
		}
		close(resumed)
	}()

	if !mgr.waitWhilePaused(task) {
		t.Fatal("waitWhilePaused reported shutdown")
	}
	<-resumed
	if task.GetStatus() != TaskStatusProcessing {
		t.Fatalf("status %s after resume", task.GetStatus())
	}
}

func TestWaitWhilePausedShutdown(t *testing.T) {
	conf := testConfig(t)
	mgr := newTestManager(t, conf, nil)

	task := NewTask("p", "x.mp4", "/tmp/x.mp4", &VideoInfo{FrameCount: 10})
	task.SetStatus(TaskStatusPaused)

	go func() {
		time.Sleep(100 * time.Millisecond)
		mgr.cancel()
	}()
	if mgr.waitWhilePaused(task) {
		t.Fatal("expected shutdown signal while paused")
	}
}

func TestCleanupOldTasks(t *testing.T) {
	conf := testConfig(t)
	mgr := newTestManager(t, conf, nil)

	staleOutput := path.Join(conf.ResultDir, "old_processed_00000000.mp4")
	if err := os.WriteFile(staleOutput, make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}

	old := NewTask("old", "old.mp4", "", nil)
	old.Status = TaskStatusCompleted
	old.OutputPath = staleOutput
	old.StartTime = time.Now().Add(-48 * time.Hour)

	fresh := NewTask("fresh", "fresh.mp4", "", nil)
	fresh.Status = TaskStatusCompleted
	fresh.StartTime = time.Now().Add(-1 * time.Hour)

	running := NewTask("running", "run.mp4", "", nil)
	running.Status = TaskStatusProcessing
	running.StartTime = time.Now().Add(-48 * time.Hour)

	mgr.mu.Lock()
	for _, task := range []*Task{old, fresh, running} {
		mgr.tasks[task.ID] = task
	}
	mgr.mu.Unlock()

	if removed := mgr.CleanupOldTasks(24 * time.Hour); removed != 1 {
		t.Fatalf("removed %d tasks, expected 1", removed)
	}
	if mgr.GetTask("old") != nil {
		t.Error("old task survived cleanup")
	}
	if _, err := os.Stat(staleOutput); !os.IsNotExist(err) {
		t.Errorf("stale output still on disk: %v", err)
	}
	if mgr.GetTask("fresh") == nil || mgr.GetTask("running") == nil {
		t.Error("cleanup removed a task it should have kept")
	}
}

func TestRehydrateMarksInterrupted(t *testing.T) {
	conf := testConfig(t)
	store, err := NewTaskStore(conf.TaskDBDir, log.GetLogger(context.Background()))
	if err != nil {
		t.Fatal(err)
	}

	interrupted := NewTask("mid", "mid.mp4", "/tmp/mid.mp4", &VideoInfo{FrameCount: 10})
	interrupted.MarkStarted(10)
	done := NewTask("done", "done.mp4", "/tmp/done.mp4", &VideoInfo{FrameCount: 10})
	done.MarkStarted(10)
	done.MarkCompleted("/tmp/out.mp4")
	for _, task := range []*Task{interrupted, done} {
		if err := store.SaveTask(task); err != nil {
			t.Fatal(err)
		}
	}
	store.Close()

	store, err = NewTaskStore(conf.TaskDBDir, log.GetLogger(context.Background()))
	if err != nil {
		t.Fatal(err)
	}
	mgr := newTestManager(t, conf, store)
	t.Cleanup(func() { store.Close() })

	if err := mgr.Rehydrate(); err != nil {
		t.Fatal(err)
	}

	s := mgr.GetStatus("mid")
	if s == nil || s.Status != TaskStatusFailed {
		t.Fatalf("interrupted task: %+v, expected failed", s)
	}
	if s.ErrorMessage != "interrupted by restart" {
		t.Errorf("error message %q", s.ErrorMessage)
	}

	if s := mgr.GetStatus("done"); s == nil || s.Status != TaskStatusCompleted {
		t.Fatalf("completed task: %+v, expected completed", s)
	}
}

func TestReconcileOrphanResults(t *testing.T) {
	conf := testConfig(t)
	mgr := newTestManager(t, conf, nil)

	orphan := path.Join(conf.ResultDir, "dance_processed_deadbeef.mp4")
	if err := os.WriteFile(orphan, make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Rehydrate(); err != nil {
		t.Fatal(err)
	}

	list := mgr.ListTasks()
	if list.Completed != 1 {
		t.Fatalf("expected 1 recovered task, got %+v", list)
	}
	if list.Tasks[0].OutputFile != orphan {
		t.Errorf("recovered output %q", list.Tasks[0].OutputFile)
	}
}
