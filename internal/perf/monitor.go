package perf

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"kinema/internal/config"
	"kinema/pkg/log"
)

const (
	sampleInterval = time.Second
	historySize    = 60
)

// Sample is one point-in-time system load reading.
type Sample struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Status classifies current load against the configured thresholds.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Recommendations tells frame loops how to pace themselves under the current
// system load.
type Recommendations struct {
	ShouldProcess bool          `json:"should_process"`
	SleepInterval time.Duration `json:"sleep_interval"`
	Reason        string        `json:"reason"`
}

// Monitor samples CPU and memory usage once per second and keeps a rolling
// history. Readers get the latest sample and pacing recommendations without
// blocking the sampler.
type Monitor struct {
	conf    *config.PerfConfig
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *logrus.Entry
	mu      sync.RWMutex
	current Sample
	history []Sample
}

func NewMonitor(conf *config.PerfConfig) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		conf:   conf,
		ctx:    ctx,
		cancel: cancel,
		logger: log.GetLogger(ctx).WithField("component", "perf"),
	}
}

func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.sampleRoutine()
}

func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) sampleRoutine() {
	defer m.wg.Done()

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	s := Sample{Timestamp: time.Now()}

	if percents, err := cpu.Percent(0, false); err != nil {
		m.logger.WithError(err).Warn("cpu sample failed")
	} else if len(percents) > 0 {
		s.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		m.logger.WithError(err).Warn("memory sample failed")
	} else {
		s.MemoryPercent = vm.UsedPercent
	}

	m.mu.Lock()
	m.current = s
	m.history = append(m.history, s)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	m.mu.Unlock()
}

// Current returns the latest sample.
func (m *Monitor) Current() Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// History returns a copy of the rolling sample window, oldest first.
func (m *Monitor) History() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sample, len(m.history))
	copy(out, m.history)
	return out
}

// CurrentStatus classifies the latest sample.
func (m *Monitor) CurrentStatus() Status {
	s := m.Current()
	switch {
	case s.CPUPercent >= m.conf.CPUCritical || s.MemoryPercent >= m.conf.MemoryCritical:
		return StatusCritical
	case s.CPUPercent >= m.conf.CPUHigh || s.MemoryPercent >= m.conf.MemoryHigh:
		return StatusWarning
	default:
		return StatusOK
	}
}

// GetRecommendations maps the current status to pacing advice for frame
// processing loops. Critical load pauses processing entirely, warning load
// stretches the yield interval.
func (m *Monitor) GetRecommendations() Recommendations {
	base := time.Duration(m.conf.SleepIntervalMs) * time.Millisecond
	busy := time.Duration(m.conf.BusySleepIntervalMs) * time.Millisecond

	switch m.CurrentStatus() {
	case StatusCritical:
		return Recommendations{
			ShouldProcess: false,
			SleepInterval: busy,
			Reason:        "system under critical load",
		}
	case StatusWarning:
		return Recommendations{
			ShouldProcess: true,
			SleepInterval: busy,
			Reason:        "system under high load",
		}
	default:
		return Recommendations{
			ShouldProcess: true,
			SleepInterval: base,
			Reason:        "system load normal",
		}
	}
}
