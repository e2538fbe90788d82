package flow

import "time"

// Scheduler abstracts deferred callbacks so terminal-redirect timing is
// testable without real timers. This is the single scheduled-callback
// mechanism in the client; no hand-rolled timer cascades.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// TimerScheduler implements Scheduler with time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
