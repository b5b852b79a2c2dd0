package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Aggregator 并发执行所有检查项
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
	metadata map[string]interface{}
	timeout  time.Duration
}

// NewAggregator timeout <= 0 时为 5s
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		metadata: make(map[string]interface{}),
		timeout:  timeout,
	}
}

func (a *Aggregator) Register(checkers ...Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, checkers...)
}

func (a *Aggregator) SetMetadata(key string, value interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata[key] = value
}

// Check 执行所有检查，单项超时计为失败
func (a *Aggregator) Check(ctx context.Context) *Response {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	metadata := make(map[string]interface{}, len(a.metadata))
	for k, v := range a.metadata {
		metadata[k] = v
	}
	a.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, c)
		}()
	}
	wg.Wait()

	resp := &Response{
		Status:    StatusHealthy,
		Checks:    make(map[string]CheckResult, len(results)),
		Metadata:  metadata,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	for _, r := range results {
		resp.Checks[r.Name] = r
		switch {
		case r.Status == StatusUnhealthy:
			resp.Status = StatusUnhealthy
		case r.Status == StatusDegraded && resp.Status == StatusHealthy:
			resp.Status = StatusDegraded
		}
	}
	return resp
}

func runCheck(ctx context.Context, c Checker) CheckResult {
	start := time.Now()
	result := CheckResult{Name: c.Name(), Status: StatusHealthy, Timestamp: start}

	done := make(chan error, 1)
	go func() { done <- c.Check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		result.Status = StatusDegraded
		if isCritical(c) {
			result.Status = StatusUnhealthy
		}
	}
	return result
}

// Handler gin 健康检查接口，unhealthy 时返回 503
func (a *Aggregator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := a.Check(c.Request.Context())
		status := http.StatusOK
		if resp.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
