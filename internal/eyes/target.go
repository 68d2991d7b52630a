package eyes

// CheckSettings describes one checkpoint. Build it with Window().
type CheckSettings struct {
	name       string
	fully      bool
	matchLevel MatchLevel
}

// Window targets the browser window (the viewport unless Fully is set).
func Window() *CheckSettings {
	return &CheckSettings{}
}

// Fully captures the whole scrollable page instead of the viewport.
func (s *CheckSettings) Fully() *CheckSettings {
	s.fully = true
	return s
}

// WithName sets the checkpoint tag shown in the dashboard.
func (s *CheckSettings) WithName(name string) *CheckSettings {
	s.name = name
	return s
}

// MatchLevel overrides the session's default match level for this checkpoint.
func (s *CheckSettings) MatchLevel(level MatchLevel) *CheckSettings {
	s.matchLevel = level
	return s
}

// Layout compares structure only, ignoring text and colour changes.
func (s *CheckSettings) Layout() *CheckSettings { return s.MatchLevel(MatchLevelLayout) }

// Strict compares what a human eye would notice.
func (s *CheckSettings) Strict() *CheckSettings { return s.MatchLevel(MatchLevelStrict) }

// Content is Strict without colour comparison.
func (s *CheckSettings) Content() *CheckSettings { return s.MatchLevel(MatchLevelContent) }

// Exact is a pixel comparison.
func (s *CheckSettings) Exact() *CheckSettings { return s.MatchLevel(MatchLevelExact) }

// Name returns the checkpoint tag.
func (s *CheckSettings) Name() string { return s.name }

// IsFully reports whether the full page is captured.
func (s *CheckSettings) IsFully() bool { return s.fully }

// GetMatchLevel returns the per-checkpoint override, or "" for the session default.
func (s *CheckSettings) GetMatchLevel() MatchLevel { return s.matchLevel }
