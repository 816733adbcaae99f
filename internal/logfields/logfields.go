package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTask       = "task"
	KeyRound      = "round"
	KeyNonce      = "nonce"
	KeyBuildID    = "build_id"
	KeyOutcome    = "outcome"
	KeyRepo       = "repository"
	KeyStage      = "stage"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyUserAgent  = "user_agent"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Task(t string) slog.Attr          { return slog.String(KeyTask, t) }
func Round(r int) slog.Attr            { return slog.Int(KeyRound, r) }
func Nonce(n string) slog.Attr         { return slog.String(KeyNonce, n) }
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Repository(r string) slog.Attr    { return slog.String(KeyRepo, r) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
