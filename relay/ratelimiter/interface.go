package ratelimiter

// Backend stores client records. It does no locking of its own on behalf of
// the RateLimiter: every call is made while the limiter's table lock is held.
type Backend interface {
	Get(id ClientID) (*ClientRecord, error)
	Set(id ClientID, record *ClientRecord) error
	Delete(id ClientID) error
	List() (map[ClientID]*ClientRecord, error)
	Clear() error
}
