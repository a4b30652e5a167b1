package repository

// DefaultPageSize is used until a List call asks for another size.
const DefaultPageSize = 25

// Option applies a configuration option to the PagedStore.
type Option func(*PagedStore)

// WithPageSize sets the initial page size.
func WithPageSize(size int) Option {
	return func(s *PagedStore) {
		if size > 0 {
			s.pageSize = size
		}
	}
}
