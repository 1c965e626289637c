package untis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/model"
)

// Session is an authenticated WebUntis session. After Logout every call
// fails with ErrSessionRequired.
type Session struct {
	client *Client
	token  string
}

// Token returns the JSESSIONID value, or "" once logged out.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

func (s *Session) requireToken(op string) error {
	if s == nil || s.client == nil || s.token == "" {
		return apperr.New(apperr.ErrSessionRequired, op, nil)
	}
	return nil
}

// GetSubjects fetches every subject known to the school.
func (s *Session) GetSubjects(ctx context.Context) ([]model.Subject, error) {
	const op = "untis.getSubjects"
	if err := s.requireToken(op); err != nil {
		return nil, err
	}

	result, err := s.client.call(ctx, "getSubjects", emptyParams{}, s.token)
	if err != nil {
		return nil, err
	}

	if isNull(result) {
		return nil, apperr.Errorf(apperr.ErrProtocol, op, "response has no result")
	}

	var subjects []model.Subject
	if err := json.Unmarshal(result, &subjects); err != nil {
		return nil, apperr.New(apperr.ErrProtocol, op, fmt.Errorf("decode subjects: %w", err))
	}
	return subjects, nil
}

type timetableParams struct {
	ID        int    `json:"id"`
	Type      int    `json:"type"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// elementTypeClass selects the class timetable in getTimetable.
const elementTypeClass = 1

// GetTimetable fetches the configured class's lessons between start and end, inclusive.
func (s *Session) GetTimetable(ctx context.Context, start, end time.Time) ([]model.TimetableEntry, error) {
	const op = "untis.getTimetable"
	if err := s.requireToken(op); err != nil {
		return nil, err
	}

	result, err := s.client.call(ctx, "getTimetable", timetableParams{
		ID:        s.client.classID,
		Type:      elementTypeClass,
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
	}, s.token)
	if err != nil {
		return nil, err
	}

	if isNull(result) {
		return nil, apperr.Errorf(apperr.ErrProtocol, op, "response has no result")
	}

	var entries []model.TimetableEntry
	if err := json.Unmarshal(result, &entries); err != nil {
		return nil, apperr.New(apperr.ErrProtocol, op, fmt.Errorf("decode timetable: %w", err))
	}
	return entries, nil
}

// Logout ends the session. The session is unusable afterwards even if the
// server call fails; callers treat the error as advisory.
func (s *Session) Logout(ctx context.Context) error {
	const op = "untis.logout"
	if err := s.requireToken(op); err != nil {
		return err
	}

	token := s.token
	s.token = ""

	result, err := s.client.call(ctx, "logout", emptyParams{}, token)
	if err != nil {
		s.client.log.Warn().Err(err).Msg("Logout failed")
		return err
	}

	// Most tenants answer logout with a null result; an explicit false is
	// logged but still not an error.
	if !isNull(result) {
		var ok bool
		if err := json.Unmarshal(result, &ok); err != nil || !ok {
			s.client.log.Warn().RawJSON("result", result).Msg("Logout not confirmed")
			return nil
		}
	}

	s.client.log.Info().Msg("Successfully logged out")
	return nil
}
