package events

import "time"

const (
	TypeWelcome         = "welcome"
	TypePrewarmStarted  = "prewarm.started"
	TypePrewarmFinished = "prewarm.finished"
)

type Welcome struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients"`
}

// PrewarmEvent reports progress of an admin pre-warm job.
type PrewarmEvent struct {
	Type    string    `json:"type"`
	JobID   string    `json:"job_id"`
	Targets int       `json:"targets"`
	OK      int       `json:"ok,omitempty"`
	Failed  int       `json:"failed,omitempty"`
	At      time.Time `json:"at"`
}
