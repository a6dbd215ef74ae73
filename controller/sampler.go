package controller

import (
	"sync"
	"time"
)

// OrientationHz 姿态采样的固定发送频率
const OrientationHz = 20

// OrientationSampler 把高频传感器采样抽稀到固定频率以约束带宽。
// 抽稀而非平均：每个节拍只发最后一次采样
type OrientationSampler struct {
	mu      sync.Mutex
	latest  OrientationEvent
	pending bool

	interval  time.Duration
	emit      func(OrientationEvent)
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewOrientationSampler 创建采样器。hz <= 0 时取 OrientationHz
func NewOrientationSampler(hz int, emit func(OrientationEvent)) *OrientationSampler {
	if hz <= 0 {
		hz = OrientationHz
	}
	return &OrientationSampler{
		interval: time.Second / time.Duration(hz),
		emit:     emit,
		stop:     make(chan struct{}),
	}
}

// Offer 接收一次传感器采样。传感器快于发送频率时，
// 同一节拍内后到的采样覆盖先到的
func (s *OrientationSampler) Offer(e OrientationEvent) {
	s.mu.Lock()
	s.latest = e
	s.pending = true
	s.mu.Unlock()
}

// Start 启动节拍协程，重复调用无效果：叠加的节拍协程
// 会让实际发送频率越过抽稀上界
func (s *OrientationSampler) Start() {
	s.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-s.stop:
					return
				case <-ticker.C:
					s.tick()
				}
			}
		}()
	})
}

// Stop 停止节拍协程，重复调用安全
func (s *OrientationSampler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// tick 一个节拍：有新采样则发出最后一次，没有则什么都不发
func (s *OrientationSampler) tick() {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return
	}
	e := s.latest
	s.pending = false
	s.mu.Unlock()
	s.emit(e)
}
