package store

import (
	"context"
	"fmt"
	"time"

	"github.com/arnavshah/workforce-scheduler-go/pkg/demand"
	"github.com/arnavshah/workforce-scheduler-go/pkg/models"
	"github.com/arnavshah/workforce-scheduler-go/pkg/schedule"
)

// ExpandRecurring materializes a role's recurring shift templates into
// concrete shifts for one schedule week, in the location's timezone.
// Occurrences that already exist (same schedule, start, stop and worker)
// are skipped, so repeated expansion is idempotent.
func (s *Store) ExpandRecurring(ctx context.Context, sched models.Schedule, tz *time.Location) ([]models.Shift, error) {
	var templates []models.RecurringShift
	err := s.db.WithContext(ctx).
		Where("role_id = ?", sched.RoleID).
		Order("id asc").
		Find(&templates).Error
	if err != nil {
		return nil, infra("load recurring shifts", err)
	}
	if len(templates) == 0 {
		return nil, nil
	}

	lock := s.scheduleLock(sched.ID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.GetSchedule(ctx, sched.ID)
	if err != nil {
		return nil, err
	}
	if schedule.Queued(cur.State) || schedule.Processing(cur.State) {
		return nil, &schedule.ErrGenerationInProgress{State: cur.State}
	}

	existing, err := s.ListShifts(ctx, sched.ID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]int, len(existing))
	for _, sh := range existing {
		have[occurrenceKey(sh)]++
	}

	var created []models.Shift
	for _, tpl := range templates {
		start, err := occurrenceStart(cur.Start, tpl, tz)
		if err != nil {
			return nil, err
		}
		stop := start.Add(time.Duration(tpl.DurationMinutes) * time.Minute)
		if start.Before(cur.Start) || stop.After(cur.Stop) {
			continue
		}
		shift := models.Shift{
			RoleID:     cur.RoleID,
			ScheduleID: cur.ID,
			UserID:     tpl.UserID,
			Start:      start,
			Stop:       stop,
		}
		key := occurrenceKey(shift)
		for have[key] < tpl.Quantity {
			have[key]++
			sh := shift
			if err := s.db.WithContext(ctx).Create(&sh).Error; err != nil {
				return nil, infra("expand recurring", err)
			}
			created = append(created, sh)
		}
	}
	return created, nil
}

func occurrenceKey(s models.Shift) string {
	return fmt.Sprintf("%d|%d|%d|%d", s.ScheduleID, s.UserID, s.Start.Unix(), s.Stop.Unix())
}

// occurrenceStart resolves a template's day-of-week and time-of-day against
// a schedule's week start.
func occurrenceStart(weekStart time.Time, tpl models.RecurringShift, tz *time.Location) (time.Time, error) {
	dayIdx := -1
	for i, name := range demand.Days {
		if name == tpl.StartDay {
			dayIdx = i
			break
		}
	}
	if dayIdx == -1 {
		return time.Time{}, &demand.ValidationError{Reason: fmt.Sprintf("unknown day %q", tpl.StartDay)}
	}
	ws := weekStart.In(tz)
	offset := (dayIdx - int(ws.Weekday()) + 7) % 7
	day := ws.AddDate(0, 0, offset)
	return time.Date(day.Year(), day.Month(), day.Day(), tpl.StartHour, tpl.StartMinute, 0, 0, tz), nil
}
