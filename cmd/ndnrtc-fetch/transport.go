package main

import (
	"fmt"
	"net/url"

	ndndengine "github.com/named-data/ndnd/std/engine/basic"
	ndndface "github.com/named-data/ndnd/std/engine/face"
	"github.com/named-data/ndnd/std/ndn"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/face"
)

// newTransport connects to the local forwarder named by faceAddr
// (unix:///path or tcp://host:port) and wraps the resulting ndnd engine as
// this module's face.Transport. Grounded on face/ndnd.go's NdndTransport,
// which takes an already-running ndn.Engine; the engine/face construction
// below follows named-data/ndnd's std/engine/basic and std/engine/face
// packages (see DESIGN.md for the one reference file this was grounded on).
func newTransport(faceAddr string) (*face.NdndTransport, func() error, error) {
	u, err := url.Parse(faceAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing face address: %w", err)
	}

	var f ndn.Face
	switch u.Scheme {
	case "unix":
		f = ndndface.NewStreamFace("unix", u.Path, false)
	case "tcp":
		f = ndndface.NewStreamFace("tcp", u.Host, false)
	default:
		return nil, nil, fmt.Errorf("unsupported face scheme %q (want unix:// or tcp://)", u.Scheme)
	}

	timer := ndndengine.NewTimer()
	eng := ndndengine.NewEngine(f, timer)
	if eng == nil {
		return nil, nil, fmt.Errorf("constructing ndnd engine for face %s", faceAddr)
	}
	if err := eng.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting ndnd engine: %w", err)
	}

	return face.NewNdndTransport(eng), eng.Stop, nil
}
