package marketclock

import (
	"fmt"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
)

// Calendar describes one exchange's regular trading session: its timezone,
// open/close times, and full-day holidays.
type Calendar struct {
	loc       *time.Location
	openMins  int // minutes after midnight, local
	closeMins int
	holidays  map[string]struct{} // YYYY-MM-DD in the exchange timezone
}

// NewCalendar builds a Calendar. open and close are "HH:MM" local times;
// holidays are YYYY-MM-DD dates.
func NewCalendar(timezone, open, close string, holidays []string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	openMins, err := parseClockMinutes(open)
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	closeMins, err := parseClockMinutes(close)
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}
	if closeMins <= openMins {
		return nil, fmt.Errorf("close %s must be after open %s", close, open)
	}
	h := make(map[string]struct{}, len(holidays))
	for _, d := range holidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("parse holiday %q: %w", d, err)
		}
		h[d] = struct{}{}
	}
	return &Calendar{loc: loc, openMins: openMins, closeMins: closeMins, holidays: h}, nil
}

// PhaseAt returns the market phase at the given instant. Live means a
// weekday that is not a holiday, within [open, close) local time; the close
// instant itself is already end-of-day.
func (c *Calendar) PhaseAt(now time.Time) models.MarketPhase {
	local := now.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return models.PhaseEndOfDay
	}
	if _, ok := c.holidays[local.Format("2006-01-02")]; ok {
		return models.PhaseEndOfDay
	}
	mins := local.Hour()*60 + local.Minute()
	if mins >= c.openMins && mins < c.closeMins {
		return models.PhaseLive
	}
	return models.PhaseEndOfDay
}

// Today returns the current calendar date in the exchange timezone.
func (c *Calendar) Today(now time.Time) string {
	return now.In(c.loc).Format("2006-01-02")
}

func parseClockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
