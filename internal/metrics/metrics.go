package metrics

import "time"

type StageMetrics struct {
	Stage      string    `json:"stage"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
}

type EpisodeMetrics struct {
	EpisodeID  string         `json:"episode_id"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	DurationMs int64          `json:"duration_ms"`
	Halt       string         `json:"halt"`
	Stages     []StageMetrics `json:"stages"`
}

func (s *StageMetrics) Finalize() {
	s.DurationMs = s.End.Sub(s.Start).Milliseconds()
}

func (m *EpisodeMetrics) Finalize() {
	m.DurationMs = m.End.Sub(m.Start).Milliseconds()
}
