package jobqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetManager(t *testing.T) {
	// Reset the singleton for testing
	globalManager = nil
	managerOnce = sync.Once{}

	manager1 := GetManager()
	manager2 := GetManager()

	assert.NotNil(t, manager1)
	assert.Same(t, manager1, manager2, "GetManager should return the same instance")

	assert.NotNil(t, manager1.queue)
	assert.False(t, manager1.running)
}

func TestManager_GetQueue(t *testing.T) {
	globalManager = nil
	managerOnce = sync.Once{}

	manager := GetManager()
	queue := manager.GetQueue()

	assert.NotNil(t, queue)
	assert.Same(t, manager.queue, queue)
}

func TestManager_IsRunning(t *testing.T) {
	globalManager = nil
	managerOnce = sync.Once{}

	manager := GetManager()

	assert.False(t, manager.IsRunning())

	manager.mu.Lock()
	manager.running = true
	manager.mu.Unlock()

	assert.True(t, manager.IsRunning())

	manager.mu.Lock()
	manager.running = false
	manager.mu.Unlock()

	assert.False(t, manager.IsRunning())
}

func TestManager_StopWithoutStart(t *testing.T) {
	globalManager = nil
	managerOnce = sync.Once{}

	manager := GetManager()

	// Stop without starting should be safe
	assert.False(t, manager.IsRunning())
	manager.Stop()
	assert.False(t, manager.IsRunning())
}
