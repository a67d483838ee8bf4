package eventbus

import "time"

// Subscription owns a strong reference to a Task, an EventType mask, and
// optional timer bookkeeping. Grounded on task_manager/subscription.py:
// if Interval is set, EventTypes carries TIMER or TIMER_ONCE plus a unique
// high bit, and NextFireTime is recomputed after every fire.
type Subscription struct {
	Task      Task
	EventTypes EventType

	// Interval is nil for non-timer subscriptions.
	Interval *time.Duration

	// NextFireTime is the next wall-clock time this subscription's timer
	// should fire. Nil once a TIMER_ONCE subscription has fired and handled
	// the event.
	NextFireTime *time.Time

	// UniqueTimerBit disambiguates subscriptions sharing mask+interval.
	UniqueTimerBit EventType
}

// IsTimer reports whether this subscription still carries live timer flags.
func (s *Subscription) IsTimer() bool {
	return s.Interval != nil && s.EventTypes.Intersects(Timer|TimerOnce)
}

// UpdateNextFireTime advances NextFireTime by Interval from now. Called
// after a recurring timer fires; TIMER_ONCE subscriptions are cleared
// instead of advanced (see taskmanager.Manager.DispatchEvent).
func (s *Subscription) UpdateNextFireTime(now time.Time) {
	if s.Interval == nil {
		return
	}
	next := now.Add(*s.Interval)
	s.NextFireTime = &next
}
