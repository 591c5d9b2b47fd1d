package camera

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestSerialQueue_RunsInOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := NewSerialQueue("test", logger)
	defer q.Close()

	var (
		mu     sync.Mutex
		result []int
	)
	for i := 0; i < 100; i++ {
		i := i
		q.Async(func() {
			mu.Lock()
			result = append(result, i)
			mu.Unlock()
		})
	}
	q.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(result) != 100 {
		t.Fatalf("Expected 100 tasks, got %d", len(result))
	}
	for i, v := range result {
		if v != i {
			t.Fatalf("Expected task %d at position %d, got %d", i, i, v)
		}
	}
}

func TestSerialQueue_NeverConcurrent(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := NewSerialQueue("test", logger)
	defer q.Close()

	var (
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	// 複数のゴルーチンから投入しても同時に実行されない
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				q.Async(func() {
					active++
					if active > maxSeen {
						maxSeen = active
					}
					active--
				})
			}
		}()
	}
	wg.Wait()
	q.Flush()

	q.Sync(func() {
		if maxSeen != 1 {
			t.Errorf("Expected at most 1 concurrent task, got %d", maxSeen)
		}
	})
}

func TestSerialQueue_RecoversPanic(t *testing.T) {
	logger, hook := test.NewNullLogger()
	q := NewSerialQueue("test", logger)
	defer q.Close()

	q.Async(func() { panic("boom") })

	ran := false
	q.Sync(func() { ran = true })
	if !ran {
		t.Error("Expected queue to continue after panic")
	}
	if len(hook.Entries) != 1 {
		t.Errorf("Expected 1 log entry, got %d", len(hook.Entries))
	}
}

func TestSerialQueue_Close(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := NewSerialQueue("test", logger)

	ran := false
	q.Async(func() { ran = true })
	q.Close()

	// 残りの処理は実行されてから停止する
	if !ran {
		t.Error("Expected pending task to run before close")
	}
	if q.Async(func() {}) {
		t.Error("Expected Async to fail after close")
	}
	if q.Sync(func() {}) {
		t.Error("Expected Sync to fail after close")
	}

	// 二重クローズは問題ない
	q.Close()
}
