// Package channel はUI層から呼び出されるメソッドチャンネルのハンドラを提供する
//
// チャンネルの転送方式はこのパッケージの外側にあり、ここではメソッド名を受け取って
// 結果または構造化エラーを返す契約だけを実装する。
package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// MethodCall はメソッドチャンネルの呼び出し
type MethodCall struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// MethodFunc は1つのメソッドの処理
type MethodFunc func(ctx context.Context, call MethodCall) (any, error)

// Handler はメソッド呼び出しを処理する
type Handler interface {
	Handle(ctx context.Context, call MethodCall) (any, error)
}

// ErrNotImplemented は未登録のメソッドが呼ばれたことを示す
var ErrNotImplemented = errors.New("not_implemented")

// Error は呼び出し元に返す構造化エラー
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Channel は名前付きのメソッドチャンネル
type Channel struct {
	name    string
	log     logrus.FieldLogger
	mu      sync.RWMutex
	methods map[string]MethodFunc
}

// New は新しいChannelを作成する
func New(name string, log logrus.FieldLogger) *Channel {
	return &Channel{
		name:    name,
		log:     log.WithField("channel", name),
		methods: make(map[string]MethodFunc),
	}
}

// Name はチャンネル名を返す
func (c *Channel) Name() string {
	return c.name
}

// Register はメソッドを登録する
func (c *Channel) Register(method string, fn MethodFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[method] = fn
}

// Methods は登録済みのメソッド名を返す
func (c *Channel) Methods() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle はメソッドを呼び出す
// 未登録のメソッドにはErrNotImplementedを返す
func (c *Channel) Handle(ctx context.Context, call MethodCall) (any, error) {
	c.mu.RLock()
	fn, ok := c.methods[call.Method]
	c.mu.RUnlock()

	if !ok {
		c.log.WithField("method", call.Method).Debug("未実装のメソッドが呼ばれました")
		return nil, ErrNotImplemented
	}

	result, err := fn(ctx, call)
	if err != nil {
		c.log.WithError(err).WithField("method", call.Method).Warn("メソッドの処理に失敗しました")
		return nil, err
	}
	return result, nil
}

// Registry はチャンネル名からチャンネルを引く
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Handler
}

// NewRegistry は新しいRegistryを作成する
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Handler)}
}

// Add はチャンネルを登録する
func (r *Registry) Add(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[name] = h
}

// Lookup はチャンネルを取得する
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.channels[name]
	return h, ok
}

// Names は登録済みのチャンネル名を返す
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
