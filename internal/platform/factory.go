package platform

import (
	"github.com/aretw0/notesync/pkg/core"
)

// New opens the store described by uri and opts and wraps it in a service.
//
//	svc, err := platform.New("./notes", platform.WithAdapter("sqlite"))
//
// The uri is adapter-specific: a directory for "fs", a database file for
// "sqlite", ignored for "memory".
func New(uri string, opts ...Option) (*core.Service, error) {
	store, err := OpenStore(uri, opts...)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	var svcOpts []core.ServiceOption
	if o.eventBuffer > 0 {
		svcOpts = append(svcOpts, core.WithEventBufferSize(o.eventBuffer))
	}
	if o.logger != nil {
		svcOpts = append(svcOpts, core.WithServiceLogger(o.logger))
	}
	return core.NewService(store, svcOpts...), nil
}
