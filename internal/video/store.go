package video

import (
	"encoding/json"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

const taskKeyPrefix = "task:"

// taskRecord is the persisted form of a Task.
type taskRecord struct {
	ID              string     `json:"id"`
	Filename        string     `json:"filename"`
	InputPath       string     `json:"inputPath"`
	OutputPath      string     `json:"outputPath"`
	Status          TaskStatus `json:"status"`
	TotalFrames     int        `json:"totalFrames"`
	ProcessedFrames int        `json:"processedFrames"`
	Info            *VideoInfo `json:"info,omitempty"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         time.Time  `json:"endTime"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
}

func (t *Task) record() *taskRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &taskRecord{
		ID:              t.ID,
		Filename:        t.Filename,
		InputPath:       t.InputPath,
		OutputPath:      t.OutputPath,
		Status:          t.Status,
		TotalFrames:     t.TotalFrames,
		ProcessedFrames: t.ProcessedFrames,
		Info:            t.Info,
		StartTime:       t.StartTime,
		EndTime:         t.EndTime,
		ErrorMessage:    t.ErrorMessage,
	}
}

func (r *taskRecord) task() *Task {
	return &Task{
		ID:              r.ID,
		Filename:        r.Filename,
		InputPath:       r.InputPath,
		OutputPath:      r.OutputPath,
		Status:          r.Status,
		TotalFrames:     r.TotalFrames,
		ProcessedFrames: r.ProcessedFrames,
		Info:            r.Info,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		ErrorMessage:    r.ErrorMessage,
	}
}

// TaskStore persists task records in a badger database so task state survives
// process restarts.
type TaskStore struct {
	db     *badger.DB
	logger *logrus.Entry
}

func NewTaskStore(dir string, logger *logrus.Entry) (*TaskStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return &TaskStore{db: db, logger: logger}, nil
}

func (s *TaskStore) Close() error {
	return s.db.Close()
}

func (s *TaskStore) SaveTask(t *Task) error {
	val, err := json.Marshal(t.record())
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(taskKeyPrefix+t.ID), val)
	})
}

func (s *TaskStore) DeleteTask(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(taskKeyPrefix + id))
	})
}

// GetTask returns nil without error when the id is unknown.
func (s *TaskStore) GetTask(id string) (*Task, error) {
	var rec taskRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(taskKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec.task(), nil
}

func (s *TaskStore) ListTasks() ([]*Task, error) {
	prefix := []byte(taskKeyPrefix)
	tasks := make([]*Task, 0, 10)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rec := &taskRecord{}
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, rec)
			})
			if err != nil {
				s.logger.WithError(err).Errorf("unmarshal task %s", item.Key())
			} else {
				tasks = append(tasks, rec.task())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
