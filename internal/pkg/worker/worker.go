package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"rankkings/internal/pkg/apperr"
	"rankkings/pkg/logger"
	"rankkings/pkg/metrics"

	"go.uber.org/zap"
)

// PushTask 把本地动态推送到远端
type PushTask struct {
	PostID uint
	Retry  int // 重试次数
}

// Pusher 执行推送的服务
type Pusher interface {
	PushPost(ctx context.Context, postID uint) error
}

type WorkerPool struct {
	TaskQueue  chan PushTask
	RetryQueue chan PushTask // 重试队列
	Pusher     Pusher
	WorkerNum  int
	MaxRetry   int           // 最大重试次数
	RetryDelay time.Duration // 第 n 次重试延迟 n*RetryDelay
	Timeout    time.Duration // 单次推送超时

	metrics *metrics.MetricsCollector
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewWorkerPool(pusher Pusher, workerNum, bufferSize, maxRetry int, m *metrics.MetricsCollector) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize < 2 {
		bufferSize = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		TaskQueue:  make(chan PushTask, bufferSize),
		RetryQueue: make(chan PushTask, bufferSize/2),
		Pusher:     pusher,
		WorkerNum:  workerNum,
		MaxRetry:   maxRetry,
		RetryDelay: time.Second,
		Timeout:    30 * time.Second,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	logger.L().Info("push worker pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 停止所有协程并等待退出，队列中未处理的任务被丢弃
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	if n := len(p.TaskQueue) + len(p.RetryQueue); n > 0 {
		logger.L().Warn("push worker pool stopped with pending tasks", zap.Int("pending", n))
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.TaskQueue:
			p.handle(id, task)
		}
	}
}

func (p *WorkerPool) handle(id int, task PushTask) {
	err := p.processTask(task)
	if err == nil {
		p.metrics.RecordSyncTask("success")
		return
	}

	log := logger.L().With(zap.Int("worker", id), zap.Uint("post_id", task.PostID), zap.Int("retry", task.Retry))
	if !retryable(err) {
		log.Warn("push task rejected", zap.Error(err))
		p.logFailedTask(task, err)
		return
	}

	// 如果未达到最大重试次数，加入重试队列
	if task.Retry < p.MaxRetry {
		task.Retry++
		select {
		case p.RetryQueue <- task:
			p.metrics.RecordSyncTask("retry")
			log.Info("push task queued for retry", zap.Error(err))
		default:
			log.Warn("retry queue full, task dropped", zap.Error(err))
			p.logFailedTask(task, err)
		}
		return
	}

	log.Warn("push task exceeded max retries", zap.Error(err))
	p.logFailedTask(task, err)
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.RetryQueue:
			// 延迟重试，避免立即重试
			timer := time.NewTimer(time.Duration(task.Retry) * p.RetryDelay)
			select {
			case <-p.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			// 重新加入主队列
			select {
			case p.TaskQueue <- task:
			default:
				logger.L().Warn("main queue full, retry dropped", zap.Uint("post_id", task.PostID))
				p.logFailedTask(task, nil)
			}
		}
	}
}

func (p *WorkerPool) processTask(task PushTask) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.Timeout)
	defer cancel()
	return p.Pusher.PushPost(ctx, task.PostID)
}

// retryable 传输失败与 5xx 可以重试，其余错误重试也不会成功
func retryable(err error) bool {
	var re *apperr.RemoteError
	if errors.As(err, &re) {
		return re.Status >= 500 || re.Status == 429
	}
	return errors.Is(err, apperr.ErrRemote)
}

func (p *WorkerPool) logFailedTask(task PushTask, err error) {
	p.metrics.RecordSyncTask("failed")
	logger.L().Error("push task failed permanently",
		zap.Uint("post_id", task.PostID),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)
}

// AddTask 非阻塞入队，队列满时丢弃
func (p *WorkerPool) AddTask(task PushTask) bool {
	select {
	case p.TaskQueue <- task:
		return true
	default:
		logger.L().Warn("push queue full, dropping task", zap.Uint("post_id", task.PostID))
		p.logFailedTask(task, nil)
		return false
	}
}

// Enqueue 以动态 ID 入队
func (p *WorkerPool) Enqueue(postID uint) {
	p.AddTask(PushTask{PostID: postID})
}
