package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/studytrack/notifyd/pkg/errors"
	"github.com/studytrack/notifyd/pkg/metrics"
)

const defaultBulkBatchSize = 100

// BulkRecipientError describes why one recipient of a bulk send failed.
type BulkRecipientError struct {
	UserID  string `json:"user_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkResult summarises a bulk send. Failures are reported per recipient and never
// abort the rest of the batch.
type BulkResult struct {
	Total      int                  `json:"total"`
	Successful int                  `json:"successful"`
	Failed     int                  `json:"failed"`
	Errors     []BulkRecipientError `json:"errors,omitempty"`
}

// SendBulk creates the same notification for every user id with bounded concurrency.
// input.UserID is ignored. Errors are listed in the order of userIDs.
func (s *NotificationService) SendBulk(ctx context.Context, userIDs []string, input CreateNotificationInput) (*BulkResult, error) {
	ctx = ensureContext(ctx)
	if len(userIDs) == 0 {
		return nil, apperrors.NewValidation("at least one recipient is required")
	}

	failures := make([]*BulkRecipientError, len(userIDs))
	var (
		mu        sync.Mutex
		succeeded int
	)

	var group errgroup.Group
	group.SetLimit(s.cfg.BulkBatchSize)
	for i, userID := range userIDs {
		group.Go(func() error {
			req := input
			req.UserID = userID
			if _, err := s.Create(ctx, req); err != nil {
				appErr := apperrors.FromError(err)
				failures[i] = &BulkRecipientError{
					UserID:  userID,
					Code:    appErr.Code,
					Message: appErr.Message,
				}
				metrics.BulkRecipients.WithLabelValues("failure").Inc()
				return nil
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
			metrics.BulkRecipients.WithLabelValues("success").Inc()
			return nil
		})
	}
	_ = group.Wait()

	result := &BulkResult{Total: len(userIDs), Successful: succeeded}
	for _, failure := range failures {
		if failure != nil {
			result.Errors = append(result.Errors, *failure)
		}
	}
	result.Failed = len(result.Errors)

	if result.Failed > 0 {
		s.log.Info("bulk send finished with failures",
			zap.Int("total", result.Total),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}
