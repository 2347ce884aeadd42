package clock

import "time"

// Clock абстрагирует источник времени для детерминированных тестов.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem возвращает clock поверх time.Now (в UTC).
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

// NewFixed возвращает clock с фиксированным моментом времени (для тестов).
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}
