package syncx

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex[string]()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("BTCUSDT")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("Expected 50 serialized increments, got %d", counter)
	}
	if m.Len() != 0 {
		t.Errorf("Expected entries to be released, got %d", m.Len())
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	m := NewKeyedMutex[int]()

	unlockA := m.Lock(1)
	done := make(chan struct{})
	go func() {
		unlockB := m.Lock(2)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
	unlockA()
}
