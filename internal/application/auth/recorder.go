package auth

import "time"

// Recorder receives authentication metrics
type Recorder interface {
	LoginOutcome(code string)
	SessionValidation(code string)
	Cleanup(deleted bool)
	ObserveVerify(kind string, d time.Duration)
	BackendHealth(healthy bool)
}

type nopRecorder struct{}

func (nopRecorder) LoginOutcome(string)                 {}
func (nopRecorder) SessionValidation(string)            {}
func (nopRecorder) Cleanup(bool)                        {}
func (nopRecorder) ObserveVerify(string, time.Duration) {}
func (nopRecorder) BackendHealth(bool)                  {}

// outcome labels a result code for metrics
func outcome(code string) string {
	if code == "" {
		return "success"
	}
	return code
}
