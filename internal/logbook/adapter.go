package logbook

// Adapter is the durability sink an Engine writes through after every
// mutation. The engine is agnostic to what backs it: registered users get
// a SQLite-backed adapter, guests get a JSON file on disk.
type Adapter interface {
	// Load returns the stored value for key, with ok=false when absent.
	Load(key string) (data []byte, ok bool, err error)
	// Save stores the value for key, replacing any previous value.
	Save(key string, data []byte) error
}

// Storage keys used by the engine.
const (
	groupsKey = "challenge_logs"
	modeKey   = "period_mode"
)
