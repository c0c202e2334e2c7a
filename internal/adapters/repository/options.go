package repository

// Option applies a configuration option to the HistoryStore.
type Option func(*HistoryStore)

// WithLimit bounds the number of stored analyses. A limit <= 0 keeps all.
func WithLimit(limit int) Option {
	return func(s *HistoryStore) {
		s.limit = limit
	}
}
