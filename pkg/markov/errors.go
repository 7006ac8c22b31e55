package markov

import "errors"

// Errors returned by the persistence functions. Each is wrapped together
// with its underlying cause, so errors.Is matches both the kind and the
// cause (for example fs.ErrNotExist).
var (
	// ErrOpenFile means the model file could not be opened for loading.
	ErrOpenFile = errors.New("could not open model file")
	// ErrCreateFile means the model file could not be created or written.
	ErrCreateFile = errors.New("could not create model file")
	// ErrReadArchive means the file is not a readable zip archive.
	ErrReadArchive = errors.New("could not read model archive")
	// ErrReadFirstEntry means the archive has no readable first entry.
	ErrReadFirstEntry = errors.New("could not read first archive entry")
	// ErrCreateEntry means the archive entry could not be created or finished.
	ErrCreateEntry = errors.New("could not create archive entry")
	// ErrDecode means the stored bytes are not a valid model encoding.
	ErrDecode = errors.New("could not decode model")
	// ErrEncode means the model could not be serialized.
	ErrEncode = errors.New("could not encode model")
)

var errNoEntries = errors.New("archive contains no entries")
