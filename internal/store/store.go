// Package store provides the key-value persistence capability used by the
// alert ledger, the reminder queue, and the notification settings.
//
// Values are JSON-serializable blobs addressed by string keys. All
// implementations are fail-open on corrupt data: a blob that cannot be
// decoded is treated as absent so the scheduler keeps running; the worst
// case is a duplicate alert, never a crash.
package store

// Store is a key-value blob store. Get reports whether the key existed;
// a corrupt blob counts as absent.
type Store interface {
	Get(key string, into any) (bool, error)
	Set(key string, v any) error
	Delete(key string) error
	Close() error
}

// Well-known keys used by the engine.
const (
	KeyAlertLedger   = "alert_ledger"
	KeyReminderQueue = "reminder_queue"
	KeySettings      = "settings"
)
