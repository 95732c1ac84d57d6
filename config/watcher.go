// 配置文件变更监听器实现。
//
// 基于修改时间轮询探测变更，防抖后触发回调；不依赖平台文件事件。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- 文件监听器类型定义 ---

// FileWatcher 轮询单个配置文件的变更。
// 服务进程用它驱动配置热重载；路径在构造后不再变化。
type FileWatcher struct {
	mu sync.RWMutex

	// 配置
	path          string
	pollInterval  time.Duration
	debounceDelay time.Duration

	// 状态
	running   bool
	stopChan  chan struct{}
	eventChan chan FileEvent

	// 回调
	callbacks []func(event FileEvent)

	// 记录器
	logger *zap.Logger

	// 上次观测到的修改时间；文件不存在时为零值
	lastModTime time.Time
	exists      bool
}

// FileEvent 一次文件变更事件
type FileEvent struct {
	// 变更的文件路径
	Path string `json:"path"`

	// 操作类型
	Op FileOp `json:"op"`

	// 事件发生时间
	Timestamp time.Time `json:"timestamp"`
}

// FileOp 文件操作类型
type FileOp int

const (
	// FileOpCreate 表示文件被创建
	FileOpCreate FileOp = iota
	// FileOpWrite 表示文件被修改
	FileOpWrite
	// FileOpRemove 表示文件被删除
	FileOpRemove
)

// String returns the string representation of FileOp
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// --- 文件监听器选项 ---

// WatcherOption configures the FileWatcher
type WatcherOption func(*FileWatcher)

// WithPollInterval sets how often the file is checked for changes
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithDebounceDelay sets the debounce delay for file events
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		w.debounceDelay = d
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) {
		w.logger = logger
	}
}

// --- 文件监听器实现 ---

// NewFileWatcher creates a watcher for a single configuration file
func NewFileWatcher(path string, opts ...WatcherOption) (*FileWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("watch path is required")
	}

	w := &FileWatcher{
		path:          path,
		pollInterval:  1 * time.Second,
		debounceDelay: 100 * time.Millisecond,
		stopChan:      make(chan struct{}),
		eventChan:     make(chan FileEvent, 16),
		callbacks:     make([]func(FileEvent), 0),
		logger:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	// 文件可以尚不存在；届时监听其创建
	if _, err := os.Stat(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
	}

	return w, nil
}

// OnChange registers a callback for file change events
func (w *FileWatcher) OnChange(callback func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching for file changes
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true

	// 初始化基线状态
	if info, err := os.Stat(w.path); err == nil {
		w.lastModTime = info.ModTime()
		w.exists = true
	}
	w.mu.Unlock()

	go w.pollLoop(ctx)
	go w.dispatchLoop(ctx)

	w.logger.Info("config file watcher started",
		zap.String("path", w.path),
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("debounce_delay", w.debounceDelay))

	return nil
}

// Stop stops the file watcher
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	close(w.stopChan)
	w.running = false

	w.logger.Info("config file watcher stopped")
	return nil
}

// pollLoop 定期检查文件状态
func (w *FileWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.checkFile()
		}
	}
}

// checkFile 比较修改时间并发布变更事件
func (w *FileWatcher) checkFile() {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) && w.exists {
			w.exists = false
			w.lastModTime = time.Time{}
			w.emit(FileEvent{Path: w.path, Op: FileOpRemove, Timestamp: time.Now()})
		}
		return
	}

	switch {
	case !w.exists:
		w.exists = true
		w.lastModTime = info.ModTime()
		w.emit(FileEvent{Path: w.path, Op: FileOpCreate, Timestamp: time.Now()})
	case info.ModTime().After(w.lastModTime):
		w.lastModTime = info.ModTime()
		w.emit(FileEvent{Path: w.path, Op: FileOpWrite, Timestamp: time.Now()})
	}
}

// emit 非阻塞发布事件；事件通道满时丢弃并告警
func (w *FileWatcher) emit(event FileEvent) {
	select {
	case w.eventChan <- event:
	default:
		w.logger.Warn("file event channel full, dropping event",
			zap.String("op", event.Op.String()))
	}
}

// dispatchLoop 防抖后把事件分发给回调；同一窗口内只保留最后一个事件
func (w *FileWatcher) dispatchLoop(ctx context.Context) {
	var (
		pending       *FileEvent
		debounceTimer *time.Timer
		fire          = make(chan struct{}, 1)
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event := <-w.eventChan:
			pending = &event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			if pending == nil {
				continue
			}
			evt := *pending
			pending = nil

			w.mu.RLock()
			callbacks := make([]func(FileEvent), len(w.callbacks))
			copy(callbacks, w.callbacks)
			w.mu.RUnlock()

			w.logger.Debug("dispatching file event",
				zap.String("path", evt.Path),
				zap.String("op", evt.Op.String()))

			for _, cb := range callbacks {
				cb(evt)
			}
		}
	}
}

// Path returns the watched file path
func (w *FileWatcher) Path() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.path
}

// IsRunning returns whether the watcher is running
func (w *FileWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
