package textgen

// GenConfig is an immutable per-call backend selection. Stages carry
// their own value; there is no process-wide mutable default.
type GenConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Ladder is the ordered escalation policy: when a call fails on quota,
// the next rung is used for subsequent calls. The failed call itself is
// never retried.
type Ladder []GenConfig

// Next returns the configuration to use after err occurred on cur. It
// escalates only on quota errors, and only while a higher rung exists;
// otherwise it returns cur unchanged with ok=false.
func (l Ladder) Next(cur GenConfig, err error) (GenConfig, bool) {
	if !IsQuotaErr(err) {
		return cur, false
	}
	for i, cfg := range l {
		if cfg == cur && i+1 < len(l) {
			return l[i+1], true
		}
	}
	return cur, false
}
