package main

import (
	"context"
	"time"
)

// 周期性更新路况，ctx取消后退出
func runTrafficScheduler(ctx context.Context, server *NavigationServer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Infof("traffic scheduler started, interval %v", interval)
	for {
		select {
		case <-ctx.Done():
			log.Info("traffic scheduler stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if server.updateTraffic(ctx) {
				log.Debugf("traffic updated in %v", time.Since(start))
			} else {
				log.Debug("traffic update skipped")
			}
		}
	}
}
