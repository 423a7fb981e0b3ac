package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/TimoBecker/LingoPulse/internal/pkg/env"
)

// Manager manages the global job queue and the periodic schedulers
type Manager struct {
	queue         *Queue
	sweepTicker   *time.Ticker
	cleanupTicker *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			queue:  NewQueue(envInt("JOBQUEUE_WORKERS", 2)),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and the periodic schedulers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and schedulers")

	// Start the job queue
	m.queue.Start()

	sweepInterval := time.Duration(envInt("EXPIRY_SWEEP_INTERVAL_MINUTES", 15)) * time.Minute
	m.sweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.expirySweepScheduler(sweepInterval)

	m.cleanupTicker = time.NewTicker(24 * time.Hour)
	m.wg.Add(1)
	go m.logCleanupScheduler()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and the schedulers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and schedulers...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.cleanupTicker != nil {
		m.cleanupTicker.Stop()
	}

	// Signal schedulers to stop
	close(m.stopCh)
	m.running = false

	// Wait for schedulers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// expirySweepScheduler periodically enqueues a subscription expiry sweep
func (m *Manager) expirySweepScheduler(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Expiry sweep scheduler running (interval: %s)", interval)

	// One sweep right after startup catches subscriptions that lapsed while
	// the service was down.
	m.enqueueExpirySweep()

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Expiry sweep scheduler stopping")
			return
		case <-m.sweepTicker.C:
			m.enqueueExpirySweep()
		}
	}
}

// logCleanupScheduler enqueues a daily webhook log retention cleanup
func (m *Manager) logCleanupScheduler() {
	defer m.wg.Done()
	log.Info("[JobQueue Manager] Log cleanup scheduler running (interval: 24h)")

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Log cleanup scheduler stopping")
			return
		case <-m.cleanupTicker.C:
			payload := LogCleanupJobPayload{
				RetentionDays: envInt("WEBHOOK_LOG_RETENTION_DAYS", defaultLogRetentionDays),
				BatchLimit:    defaultLogCleanupBatch,
			}
			if _, err := m.queue.EnqueueJob(JobTypeLogCleanup, payload.ToMap()); err != nil {
				log.Errorf("[JobQueue Manager] Could not enqueue log cleanup: %v", err)
			}
		}
	}
}

func (m *Manager) enqueueExpirySweep() {
	payload := ExpirySweepJobPayload{BatchLimit: envInt("EXPIRY_SWEEP_BATCH", defaultExpirySweepBatch)}
	if _, err := m.queue.EnqueueJob(JobTypeExpirySweep, payload.ToMap()); err != nil {
		log.Errorf("[JobQueue Manager] Could not enqueue expiry sweep: %v", err)
	}
}

// RunExpirySweepOnce exposes a manual trigger for a single sweep (admin use).
func (m *Manager) RunExpirySweepOnce() {
	m.enqueueExpirySweep()
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return def
}
