package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	aws_pkg "github.com/yashrajoria/orderms/pkg/aws"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct turns the first validator failure into a ValidationError.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Validation("Invalid input")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return apperrors.Validation(fmt.Sprintf("%s is required", fe.Field()))
	case "max":
		return apperrors.Validation(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	case "gte":
		return apperrors.Validation(fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
	default:
		return apperrors.Validation(fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

func isNotFound(err error) bool  { return errors.Is(err, gorm.ErrRecordNotFound) }
func isDuplicate(err error) bool { return errors.Is(err, gorm.ErrDuplicatedKey) }

// shortID is the first block of a uuid4: 8 hex chars.
func shortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// EventPublisher sends domain events to SNS. Publishing is best-effort: a nil
// publisher or an empty topic drops events, failures are logged.
type EventPublisher struct {
	sns    aws_pkg.SNSPublisher
	topic  string
	logger *zap.Logger
}

func NewEventPublisher(sns aws_pkg.SNSPublisher, topicArn string, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{sns: sns, topic: topicArn, logger: logger}
}

func (p *EventPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	if p == nil || p.sns == nil || p.topic == "" {
		return
	}
	payload["event_type"] = eventType
	payload["occurred_at"] = time.Now().UTC().Format(time.RFC3339)

	msg, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("failed to marshal event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := p.sns.Publish(ctx, p.topic, eventType, msg); err != nil {
		p.logger.Warn("event publish failed", zap.String("event_type", eventType), zap.Error(err))
	}
}

func countMetric(ctx context.Context, m aws_pkg.MetricsRecorder, name string, dims map[string]string) {
	if m == nil || !m.IsEnabled() {
		return
	}
	if err := m.RecordCount(ctx, name, dims); err != nil {
		zap.L().Debug("metric dropped", zap.String("metric", name), zap.Error(err))
	}
}

func latencyMetric(ctx context.Context, m aws_pkg.MetricsRecorder, name string, d time.Duration) {
	if m == nil || !m.IsEnabled() {
		return
	}
	if err := m.RecordLatency(ctx, name, d, nil); err != nil {
		zap.L().Debug("metric dropped", zap.String("metric", name), zap.Error(err))
	}
}

// MetaData describes one page of a listing.
type MetaData struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

func newMetaData(page, limit int, total int64) MetaData {
	return MetaData{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: calculateTotalPages(total, limit),
		HasMore:    total > int64(page*limit),
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
