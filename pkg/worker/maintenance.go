package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/z-wentao/voicedub/pkg/cache"
	"github.com/z-wentao/voicedub/pkg/metrics"
	"github.com/z-wentao/voicedub/pkg/source"
)

// TempPrefixes 流程中产生的临时文件前缀
var TempPrefixes = []string{source.TempPrefix, "tts-", "dubbed-"}

// MaintenanceOptions 定时任务配置
type MaintenanceOptions struct {
	CacheSweepSchedule string
	TempSweepSchedule  string
	TempDir            string
	TempMaxAge         time.Duration
}

// Maintenance 定时清理过期缓存和残留的临时文件
type Maintenance struct {
	cron    *cron.Cron
	cache   *cache.Cache
	metrics *metrics.Metrics
	opts    MaintenanceOptions
	now     func() time.Time
}

// NewMaintenance 注册定时任务；schedule 为空表示不启用
func NewMaintenance(c *cache.Cache, m *metrics.Metrics, opts MaintenanceOptions) (*Maintenance, error) {
	if opts.TempMaxAge <= 0 {
		opts.TempMaxAge = 6 * time.Hour
	}

	mt := &Maintenance{
		cron:    cron.New(),
		cache:   c,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}

	if opts.CacheSweepSchedule != "" {
		if _, err := mt.cron.AddFunc(opts.CacheSweepSchedule, func() { mt.SweepCache(context.Background()) }); err != nil {
			return nil, fmt.Errorf("无效的缓存清理计划 %q: %w", opts.CacheSweepSchedule, err)
		}
	}
	if opts.TempSweepSchedule != "" && opts.TempDir != "" {
		if _, err := mt.cron.AddFunc(opts.TempSweepSchedule, func() { mt.SweepTempFiles() }); err != nil {
			return nil, fmt.Errorf("无效的临时文件清理计划 %q: %w", opts.TempSweepSchedule, err)
		}
	}

	return mt, nil
}

// Start 启动定时任务
func (mt *Maintenance) Start() {
	mt.cron.Start()
	log.Printf("✓ 定时清理已启动 (%d 个任务)", len(mt.cron.Entries()))
}

// Stop 停止定时任务，等待正在运行的任务结束
func (mt *Maintenance) Stop() {
	<-mt.cron.Stop().Done()
	log.Println("✓ 定时清理已停止")
}

// SweepCache 删除过期缓存
func (mt *Maintenance) SweepCache(ctx context.Context) int {
	removed, err := mt.cache.Sweep(ctx)
	if err != nil {
		log.Printf("⚠️ 清理过期缓存失败: %v", err)
		return 0
	}
	if removed > 0 {
		log.Printf("🧹 已清理 %d 个过期缓存", removed)
	}
	mt.metrics.CacheSwept(removed)
	return removed
}

// SweepTempFiles 删除超过 TempMaxAge 的临时文件（进程异常退出后的残留）
func (mt *Maintenance) SweepTempFiles() int {
	entries, err := os.ReadDir(mt.opts.TempDir)
	if err != nil {
		log.Printf("⚠️ 读取临时目录失败: %v", err)
		return 0
	}

	cutoff := mt.now().Add(-mt.opts.TempMaxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !hasTempPrefix(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(mt.opts.TempDir, entry.Name())); err != nil {
			log.Printf("⚠️ 删除临时文件失败 %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("🧹 已清理 %d 个残留临时文件", removed)
	}
	mt.metrics.TempFilesSwept(removed)
	return removed
}

func hasTempPrefix(name string) bool {
	for _, prefix := range TempPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
