package prompt

import "github.com/chris/dayplan/internal/stats"

// Context is everything the section builders may look at. It is rebuilt
// for every turn.
type Context struct {
	User     User
	Temporal TemporalContext
	// Stats is nil when it was not requested or failed to load; in the
	// latter case StatsUnavailable is set.
	Stats               *stats.UserStats
	StatsUnavailable    bool
	ConversationSummary string
	Tools               []ToolSummary
}

type User struct {
	ID          string
	DisplayName string
	Preferences Preferences
}

type Preferences struct {
	Language string
	Timezone string
}

// ToolSummary is how a tool is described in the tools section.
type ToolSummary struct {
	Name        string
	Description string
	Class       string
}

// english reports whether the prompt should be written in English.
// Anything other than an explicit English preference gets Spanish.
func (c Context) english() bool {
	return IsEnglish(c.User.Preferences.Language)
}

func (c Context) text() catalog {
	if c.english() {
		return english
	}
	return spanish
}
