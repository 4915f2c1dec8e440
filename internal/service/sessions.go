package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
)

var weekdayNames = [...]string{
	time.Sunday:    "Pazar",
	time.Monday:    "Pazartesi",
	time.Tuesday:   "Salı",
	time.Wednesday: "Çarşamba",
	time.Thursday:  "Perşembe",
	time.Friday:    "Cuma",
	time.Saturday:  "Cumartesi",
}

// SessionName is the display name given to automatically created days,
// e.g. "Cuma - 2026-10-16".
func SessionName(day time.Time) string {
	return weekdayNames[day.Weekday()] + " - " + day.Format(domain.DateLayout)
}

func (s *Service) ListSessions(ctx context.Context) ([]domain.BusinessSession, error) {
	return s.repo.ListSessions(ctx)
}

// GetActiveSession returns nil without error when no day is open.
func (s *Service) GetActiveSession(ctx context.Context) (*domain.BusinessSession, error) {
	active, err := s.repo.GetActiveSession(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return active, err
}

func (s *Service) CreateSession(ctx context.Context, req domain.SessionCreateRequest) (domain.BusinessSession, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return domain.BusinessSession{}, err
	}

	created, err := s.repo.CreateSession(ctx, domain.BusinessSession{
		Date:      req.Date,
		Name:      req.Name,
		IsActive:  req.IsActive,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.BusinessSession{}, err
	}
	s.logAudit(ctx, "session_create", "session", created.ID, "date", created.Date, "active", created.IsActive)
	return *created, nil
}

func (s *Service) ActivateSession(ctx context.Context, id string) (domain.BusinessSession, error) {
	session, err := s.repo.ActivateSession(ctx, id)
	if err != nil {
		return domain.BusinessSession{}, err
	}
	s.logAudit(ctx, "session_activate", "session", session.ID, "date", session.Date)
	return *session, nil
}

// StartDay opens today's session, reusing the newest one already dated
// today or creating it.
func (s *Service) StartDay(ctx context.Context) (domain.BusinessSession, error) {
	today := s.Today()
	existing, err := s.repo.FindSessionByDate(ctx, today)
	switch {
	case err == nil:
		if existing.IsActive {
			return *existing, nil
		}
		return s.ActivateSession(ctx, existing.ID)
	case errors.Is(err, store.ErrNotFound):
		return s.CreateSession(ctx, domain.SessionCreateRequest{
			Date:     today,
			Name:     SessionName(s.Now()),
			IsActive: true,
		})
	default:
		return domain.BusinessSession{}, err
	}
}

// EndDay closes the active session without opening another.
func (s *Service) EndDay(ctx context.Context) (domain.BusinessSession, error) {
	active, err := s.repo.GetActiveSession(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return domain.BusinessSession{}, ErrNoActiveSession
	}
	if err != nil {
		return domain.BusinessSession{}, err
	}
	if _, err := s.repo.DeactivateSessions(ctx); err != nil {
		return domain.BusinessSession{}, err
	}
	active.IsActive = false
	s.logAudit(ctx, "session_end", "session", active.ID, "date", active.Date)
	return *active, nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.logAudit(ctx, "session_delete", "session", id)
	return nil
}

// EnsureToday creates and activates a session for today when none exists
// for the date yet. An existing session for today is left alone, active or
// not, so a manual end of day stays ended. It reports whether it created one.
func (s *Service) EnsureToday(ctx context.Context) (*domain.BusinessSession, bool, error) {
	today := s.Today()
	existing, err := s.repo.FindSessionByDate(ctx, today)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	created, err := s.CreateSession(ctx, domain.SessionCreateRequest{
		Date:     today,
		Name:     SessionName(s.Now()),
		IsActive: true,
	})
	if err != nil {
		return nil, false, err
	}
	return &created, true, nil
}
