package telemetry

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Stopwatch замеряет длительность одной операции.
type Stopwatch struct {
	name    string
	start   time.Time
	elapsed time.Duration
	stopped bool
	log     logrus.FieldLogger
	now     func() time.Time
}

// Start запускает секундомер. log может быть nil, тогда результат не логируется.
func Start(log logrus.FieldLogger, name string) *Stopwatch {
	s := &Stopwatch{name: name, log: log, now: time.Now}
	s.start = s.now()
	return s
}

// Elapsed возвращает прошедшее время; после Stop значение фиксируется.
func (s *Stopwatch) Elapsed() time.Duration {
	if s.stopped {
		return s.elapsed
	}
	return s.now().Sub(s.start)
}

// Stop фиксирует время и пишет его в лог вместе с ошибкой операции, если она была.
// Повторные вызовы возвращают первое значение.
func (s *Stopwatch) Stop(err error) time.Duration {
	if s.stopped {
		return s.elapsed
	}
	s.elapsed = s.now().Sub(s.start)
	s.stopped = true

	if s.log != nil {
		entry := s.log.WithFields(logrus.Fields{
			"operation":  s.name,
			"elapsed_ms": s.elapsed.Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Warn("operation failed")
		} else {
			entry.Debug("operation finished")
		}
	}
	return s.elapsed
}

// Measure выполняет fn и возвращает его длительность. Паника в fn журналируется
// как сбой операции и пробрасывается дальше.
func Measure(log logrus.FieldLogger, name string, fn func() error) (elapsed time.Duration, err error) {
	s := Start(log, name)
	defer func() {
		if r := recover(); r != nil {
			s.fail(r)
			panic(r)
		}
		elapsed = s.Stop(err)
	}()
	err = fn()
	return elapsed, err
}

// fail фиксирует время для операции, прерванной паникой.
func (s *Stopwatch) fail(r any) {
	if s.stopped {
		return
	}
	s.elapsed = s.now().Sub(s.start)
	s.stopped = true

	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"operation":  s.name,
			"elapsed_ms": s.elapsed.Milliseconds(),
			"panic":      fmt.Sprint(r),
		}).Error("operation panicked")
	}
}
