package task

import (
	"context"
	"time"

	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// 每小时把新网站补充进布隆过滤器并保存
	filterSpec = "0 0 * * * *"
	// 每10分钟清理过期的内存会话
	sessionCleanupSpec = "0 */10 * * * *"

	jobTimeout = 5 * time.Minute
)

// ScopeCompactor 修复排序值不连续的范围
type ScopeCompactor interface {
	CompactScopes(ctx context.Context) (int, error)
}

// FilterWarmer 重新加载网站ID到过滤器
type FilterWarmer interface {
	WarmFilter(ctx context.Context) error
}

// FilterSaver 持久化过滤器
type FilterSaver interface {
	Save(ctx context.Context) error
}

// SessionCleaner 清理过期会话
type SessionCleaner interface {
	Cleanup() int
}

// Jobs 定时任务依赖，为空的依赖对应的任务不会注册
type Jobs struct {
	Compactors []ScopeCompactor
	Warmer     FilterWarmer
	Filter     FilterSaver
	Sessions   SessionCleaner
}

// Scheduler 定时任务调度器
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	logger *zap.SugaredLogger
}

// NewScheduler 创建调度器，compactSpec 为六段式cron表达式
func NewScheduler(compactSpec string, jobs Jobs) (*Scheduler, error) {
	timezone, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		timezone = time.Local
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(timezone)),
		jobs:   jobs,
		logger: logger.GetSugaredLogger(),
	}

	if len(jobs.Compactors) > 0 {
		if _, err := s.cron.AddFunc(compactSpec, s.wrap(s.RunCompaction)); err != nil {
			return nil, err
		}
	}
	if jobs.Warmer != nil {
		if _, err := s.cron.AddFunc(filterSpec, s.wrap(s.RunFilterRefresh)); err != nil {
			return nil, err
		}
	}
	if jobs.Sessions != nil {
		if _, err := s.cron.AddFunc(sessionCleanupSpec, func() { s.RunSessionCleanup() }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) wrap(job func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := job(ctx); err != nil {
			s.logger.Errorf("定时任务执行失败: %v", err)
		}
	}
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Infof("定时任务已启动，共 %d 个", len(s.cron.Entries()))
}

// Stop 停止调度器并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunCompaction 修复所有不连续的排序范围
func (s *Scheduler) RunCompaction(ctx context.Context) error {
	total := 0
	for _, compactor := range s.jobs.Compactors {
		fixed, err := compactor.CompactScopes(ctx)
		total += fixed
		if err != nil {
			return err
		}
	}
	if total > 0 {
		s.logger.Infof("排序修复完成，共修复 %d 个范围", total)
	}
	return nil
}

// RunFilterRefresh 补充过滤器并保存
func (s *Scheduler) RunFilterRefresh(ctx context.Context) error {
	if err := s.jobs.Warmer.WarmFilter(ctx); err != nil {
		return err
	}
	if s.jobs.Filter == nil {
		return nil
	}
	return s.jobs.Filter.Save(ctx)
}

// RunSessionCleanup 清理过期会话
func (s *Scheduler) RunSessionCleanup() int {
	removed := s.jobs.Sessions.Cleanup()
	if removed > 0 {
		s.logger.Debugf("已清理 %d 个过期会话", removed)
	}
	return removed
}
