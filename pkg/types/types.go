package types

// Reserved measurement keys carrying a float's identity inside its readings.
const (
	KeyID   = "id"
	KeyName = "name"
)

// Credentials are the account login details for the Brew Brain service.
type Credentials struct {
	Username string
	Password string
}

// Float is one monitored brewing float as listed by the service.
type Float struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Measurements maps a metric name ("Temperature", "SG", "Voltage", ...) to its
// displayed value. Values stay strings; consumers cast them.
type Measurements map[string]string

// Snapshot is the complete result of one refresh cycle, keyed by float ID.
type Snapshot map[string]Measurements

// Get returns the value of metric for the given float.
func (s Snapshot) Get(floatID, metric string) (string, bool) {
	m, ok := s[floatID]
	if !ok {
		return "", false
	}
	v, ok := m[metric]
	return v, ok
}
