package run

import (
	"context"

	"holdtalk/internal/logging"
)

func (s *Server) hookWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.hookCh:
			if err := s.hook.Run(ctx, job); err != nil {
				logging.WithTake(s.logger, job.Take).Errorf("hook: %v", err)
				continue
			}
			s.metrics.incSent()
		}
	}
}
