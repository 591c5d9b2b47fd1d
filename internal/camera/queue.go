package camera

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// SerialQueue は投入された処理を1つのゴルーチンで投入順に実行する
//
// セッションの変更はすべて専用のSerialQueue上で行い、プレビュー面への
// 追加はUI用のSerialQueue上で行う。
type SerialQueue struct {
	label string
	log   logrus.FieldLogger

	mu     sync.Mutex
	tasks  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewSerialQueue は新しいSerialQueueを作成し、実行ゴルーチンを開始する
func NewSerialQueue(label string, log logrus.FieldLogger) *SerialQueue {
	q := &SerialQueue{
		label: label,
		log:   log.WithField("queue", label),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Label はキューの名前を返す
func (q *SerialQueue) Label() string {
	return q.label
}

// Async はfnをキューに追加してすぐに戻る
// 既にクローズされている場合はfalseを返す
func (q *SerialQueue) Async(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	q.signal()
	return true
}

// Sync はfnをキューに追加し、実行が終わるまで待つ
// キュー上の処理から呼び出すとデッドロックする
func (q *SerialQueue) Sync(fn func()) bool {
	finished := make(chan struct{})
	if !q.Async(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

// Flush はそれまでに投入された処理がすべて終わるまで待つ
func (q *SerialQueue) Flush() {
	q.Sync(func() {})
}

// Close は残りの処理を実行し終えてからキューを停止する
func (q *SerialQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
	<-q.done
}

func (q *SerialQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *SerialQueue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.execute(fn)
	}
}

// execute は1つの処理を実行する。パニックはログに残してキューを継続する
func (q *SerialQueue) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.WithField("panic", r).Error("キュー上の処理でパニックが発生しました")
		}
	}()
	fn()
}
