// Package service holds the business rules of the POS: the session gate on
// the ledgers, the order lifecycle and stock deductions, user and role
// management. Persistence is delegated to a store.Repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/observability"
	"pideci/backend/internal/store"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNoActiveSession     = errors.New("no active session")
	ErrPastSessionReadOnly = errors.New("past sessions are read-only")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidCredentials  = errors.New("invalid username or password")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// StatsInvalidator drops cached sales statistics after the ledger changes.
type StatsInvalidator interface {
	Invalidate(ctx context.Context)
}

type Service struct {
	repo     store.Repository
	validate *validator.Validate
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
	metrics  *observability.Metrics
	stats    StatsInvalidator
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the business timezone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithStatsInvalidator(inv StatsInvalidator) Option {
	return func(s *Service) { s.stats = inv }
}

func New(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		validate: newValidator(),
		now:      time.Now,
		location: time.UTC,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location {
	return s.location
}

// Now is the current instant in the business timezone.
func (s *Service) Now() time.Time {
	return s.now().In(s.location)
}

// Today is the business calendar date, YYYY-MM-DD.
func (s *Service) Today() string {
	return s.Now().Format(domain.DateLayout)
}

// StartOfToday is midnight of the business day.
func (s *Service) StartOfToday() time.Time {
	now := s.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// check runs struct-tag validation and folds the failures into one
// ErrValidation carrying a readable message per field.
func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s form", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// writableSession returns the session sales and expenses may be booked
// against: the active one, and only while its date is today.
func (s *Service) writableSession(ctx context.Context) (*domain.BusinessSession, error) {
	active, err := s.repo.GetActiveSession(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	if today := s.Today(); active.Date != today {
		return nil, fmt.Errorf("%w: session %q is dated %s, today is %s", ErrPastSessionReadOnly, active.Name, active.Date, today)
	}
	return active, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
}

func (s *Service) warnStock(ctx context.Context, source string, warnings []domain.StockWarning) {
	for _, w := range warnings {
		s.metrics.RecordStockClamp()
		s.logger.WarnContext(ctx, "stock clamped at zero",
			"source", source,
			"stock_id", w.StockItemID,
			"name", w.Name,
			"requested", w.Requested,
			"available", w.Available,
		)
	}
}

// logAudit writes one structured line per state change, attributed to the
// actor on the context.
func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, attrs ...any) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	args := append([]any{
		"action", action,
		"entity_type", entityType,
		"entity_id", entityID,
		"actor", actor.Username,
		"actor_role", actor.Role,
	}, attrs...)
	s.logger.InfoContext(ctx, "audit", args...)
}
