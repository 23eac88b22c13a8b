package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/Harshitk-cp/storybrain/internal/llm"
	"github.com/Harshitk-cp/storybrain/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultInsightInterval = 1 * time.Minute
	defaultInsightBatch    = 50
	defaultClaimLease      = 5 * time.Minute
)

var (
	ErrConflictNotFound   = errors.New("conflict log not found")
	ErrInvalidStatus      = errors.New("status must be RESOLVED or DISMISSED")
	ErrConflictNotPending = errors.New("conflict log is not pending")
)

// InsightService turns pending conflict logs into author-facing alerts and
// records how authors settle them.
type InsightService struct {
	conflicts domain.ConflictLogStore
	explainer domain.Explainer
	logger    *zap.Logger

	maxWords   int
	batchSize  int
	claimLease time.Duration

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewInsightService(cs domain.ConflictLogStore, explainer domain.Explainer, logger *zap.Logger) *InsightService {
	return &InsightService{
		conflicts:  cs,
		explainer:  explainer,
		logger:     logger,
		maxWords:   llm.DefaultMaxWords,
		batchSize:  defaultInsightBatch,
		claimLease: defaultClaimLease,
		interval:   defaultInsightInterval,
		stopCh:     make(chan struct{}),
	}
}

func (s *InsightService) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

func (s *InsightService) SetMaxWords(n int) {
	if n > 0 {
		s.maxWords = n
	}
}

// ProcessPending claims the project's unexplained pending logs, oldest first,
// explains them and stores each alert on its log. Logs claimed by a concurrent
// call are left to that call. A failure on one log releases its claim and does
// not stop the others; the joined errors are returned with the alerts that
// succeeded.
func (s *InsightService) ProcessPending(ctx context.Context, projectID uuid.UUID) ([]domain.Alert, error) {
	if s.explainer == nil {
		return nil, errors.New("explainer not configured")
	}

	logs, err := s.conflicts.ClaimUnexplained(ctx, projectID, s.batchSize, s.claimLease)
	if err != nil {
		return nil, fmt.Errorf("claim unexplained conflicts: %w", err)
	}

	var alerts []domain.Alert
	var errs []error
	for i, l := range logs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			for _, rest := range logs[i:] {
				s.release(context.WithoutCancel(ctx), rest.ID)
			}
			break
		}

		c := l.Conflict()
		alert, err := s.explainer.ExplainConflict(ctx, c, s.maxWords)
		if err != nil {
			s.logger.Warn("failed to explain conflict", zap.String("log_id", l.ID.String()), zap.Error(err))
			errs = append(errs, err)
			s.release(ctx, l.ID)
			continue
		}
		if err := s.conflicts.SetAlert(ctx, l.ID, alert); err != nil {
			s.logger.Warn("failed to store alert", zap.String("log_id", l.ID.String()), zap.Error(err))
			errs = append(errs, err)
			s.release(ctx, l.ID)
			continue
		}

		alerts = append(alerts, domain.Alert{
			LogID:        l.ID,
			Type:         l.IssueType,
			Entity:       c.Subject,
			Explanation:  alert,
			OriginalText: l.OriginalText,
		})
	}

	return alerts, errors.Join(errs...)
}

// release frees a claim early; a claim that fails to release expires with its lease.
func (s *InsightService) release(ctx context.Context, logID uuid.UUID) {
	if err := s.conflicts.ReleaseClaim(ctx, logID); err != nil {
		s.logger.Warn("failed to release conflict claim", zap.String("log_id", logID.String()), zap.Error(err))
	}
}

func (s *InsightService) Pending(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.ConflictLog, error) {
	if limit <= 0 || limit > defaultInsightBatch {
		limit = defaultInsightBatch
	}
	return s.conflicts.ListPending(ctx, projectID, limit)
}

// Resolve closes a pending conflict log as RESOLVED or DISMISSED.
func (s *InsightService) Resolve(ctx context.Context, projectID, logID uuid.UUID, status domain.ConflictStatus) (*domain.ConflictLog, error) {
	if status != domain.StatusResolved && status != domain.StatusDismissed {
		return nil, ErrInvalidStatus
	}

	l, err := s.conflicts.GetByID(ctx, projectID, logID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConflictNotFound
		}
		return nil, err
	}
	if l.Status != domain.StatusPending {
		return nil, ErrConflictNotPending
	}

	if err := s.conflicts.UpdateStatus(ctx, projectID, logID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConflictNotFound
		}
		return nil, err
	}
	l.Status = status
	return l, nil
}

// Start explains pending conflicts of every project on a periodic schedule in
// a background goroutine.
func (s *InsightService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("insight worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("insight worker stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the insight worker.
func (s *InsightService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *InsightService) run(ctx context.Context) {
	projects, err := s.conflicts.ListProjectsWithUnexplained(ctx)
	if err != nil {
		s.logger.Error("failed to list projects with pending conflicts", zap.Error(err))
		return
	}

	for _, projectID := range projects {
		alerts, err := s.ProcessPending(ctx, projectID)
		if err != nil {
			s.logger.Warn("conflict explanation incomplete", zap.String("project_id", projectID.String()), zap.Error(err))
		}
		if len(alerts) > 0 {
			s.logger.Info("conflicts explained", zap.String("project_id", projectID.String()), zap.Int("count", len(alerts)))
		}
	}
}
