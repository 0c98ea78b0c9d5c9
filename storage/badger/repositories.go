package badger

// Repositories bundles all repositories sharing one backend.
type Repositories struct {
	Uploads   *UploadRepository
	Documents *DocumentRepository
	Jobs      *JobRepository
	Routing   *RoutingRepository
	Chat      *ChatRepository

	backend *Backend
}

// NewRepositories opens a backend at path and wires every repository to it.
func NewRepositories(path string) (*Repositories, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return wrapBackend(backend), nil
}

func wrapBackend(backend *Backend) *Repositories {
	return &Repositories{
		Uploads:   NewUploadRepository(backend),
		Documents: NewDocumentRepository(backend),
		Jobs:      NewJobRepository(backend),
		Routing:   NewRoutingRepository(backend),
		Chat:      NewChatRepository(backend),
		backend:   backend,
	}
}

// Close closes every repository and the shared backend.
func (r *Repositories) Close() error {
	r.Uploads.Close()
	r.Documents.Close()
	r.Jobs.Close()
	r.Routing.Close()
	r.Chat.Close()
	return r.backend.Close()
}
