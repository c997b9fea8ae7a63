package badger

// Stores bundles the repositories sharing one backend.
type Stores struct {
	Backend *Backend
	Records *RecordStore
	Runs    *RunRepository
	States  *SyncStateRepository
}

// OpenStores opens a backend at the given path and wires the three
// repositories onto it.
func OpenStores(filePath string, inMemory bool) (*Stores, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Backend: backend,
		Records: NewRecordStore(backend),
		Runs:    NewRunRepository(backend),
		States:  NewSyncStateRepository(backend),
	}, nil
}

// NewMemoryStores opens an in-memory store set, mainly for tests.
func NewMemoryStores() (*Stores, error) {
	return OpenStores("", true)
}

// Close closes the shared backend.
func (s *Stores) Close() error {
	return s.Backend.Close()
}
