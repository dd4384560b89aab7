package jobqueue

import (
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/minivisionary/creditwallet/internal/pkg/env"
)

// Manager manages the global job queue
type Manager struct {
	queue   *Queue
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := env.GetEnvInt("JOBQUEUE_WORKERS", 5)
		globalManager = &Manager{
			queue: NewQueue(workerCount),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.running = true
	log.Info("[JobQueue Manager] Starting job queue")
	m.queue.Start()
	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue workers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue...")
	m.running = false
	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
