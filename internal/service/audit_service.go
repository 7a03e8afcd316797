package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/impact-assessment-api/internal/models"
	"github.com/noah-isme/impact-assessment-api/pkg/jobs"
)

const auditJobKind = "audit_log"

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService persists audit entries off the request path through a job queue.
type AuditService struct {
	writer auditLogWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService wires the writer to a queue configured by cfg.
func NewAuditService(writer auditLogWriter, logger *zap.Logger, cfg jobs.QueueConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s := &AuditService{writer: writer, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, cfg)
	return s
}

// Start launches the audit workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending entries until ctx expires.
func (s *AuditService) Stop(ctx context.Context) {
	s.queue.Stop(ctx)
}

// CreateAuditLog schedules the entry. When the queue cannot take it the entry
// is written synchronously so it is not lost.
func (s *AuditService) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log == nil {
		return nil
	}
	if err := s.queue.Enqueue(jobs.Job{Kind: auditJobKind, Payload: log}); err != nil {
		s.logger.Warn("audit queue unavailable, writing inline", zap.String("action", log.Action), zap.Error(err))
		return s.writer.CreateAuditLog(ctx, log)
	}
	return nil
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.writer.CreateAuditLog(ctx, entry)
}
