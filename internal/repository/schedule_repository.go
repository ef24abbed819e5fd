package repository

import (
	"context"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ScheduleRepository loads business hours schedules with their entries and
// holiday exceptions.
type ScheduleRepository interface {
	GetByID(ctx context.Context, id string) (*domain.BusinessHoursSchedule, error)
}

type scheduleRepository struct {
	db DB
}

// NewScheduleRepository instantiates repository.
func NewScheduleRepository(db DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) GetByID(ctx context.Context, id string) (*domain.BusinessHoursSchedule, error) {
	const query = `
        SELECT id, name, timezone, is_24x7
        FROM business_hours_schedules WHERE id=$1`
	var schedule domain.BusinessHoursSchedule
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&schedule.ID,
		&schedule.Name,
		&schedule.Timezone,
		&schedule.Is24x7,
	); err != nil {
		return nil, err
	}
	if schedule.Is24x7 {
		return &schedule, nil
	}

	entries, err := r.listEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	schedule.Entries = entries

	holidays, err := r.listHolidays(ctx, id)
	if err != nil {
		return nil, err
	}
	schedule.Holidays = holidays
	return &schedule, nil
}

func (r *scheduleRepository) listEntries(ctx context.Context, scheduleID string) ([]domain.BusinessHoursEntry, error) {
	const query = `
        SELECT schedule_id, day_of_week, start_minute, end_minute
        FROM business_hours_entries WHERE schedule_id=$1
        ORDER BY day_of_week, start_minute`
	rows, err := r.db.Query(ctx, query, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BusinessHoursEntry
	for rows.Next() {
		var entry domain.BusinessHoursEntry
		var day int
		if err := rows.Scan(&entry.ScheduleID, &day, &entry.StartMinute, &entry.EndMinute); err != nil {
			return nil, err
		}
		entry.DayOfWeek = time.Weekday(day)
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *scheduleRepository) listHolidays(ctx context.Context, scheduleID string) ([]domain.Holiday, error) {
	const query = `
        SELECT schedule_id, holiday_date, name
        FROM holidays WHERE schedule_id=$1 ORDER BY holiday_date`
	rows, err := r.db.Query(ctx, query, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Holiday
	for rows.Next() {
		var holiday domain.Holiday
		if err := rows.Scan(&holiday.ScheduleID, &holiday.Date, &holiday.Name); err != nil {
			return nil, err
		}
		result = append(result, holiday)
	}
	return result, rows.Err()
}
