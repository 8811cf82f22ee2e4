package shaderflow

// Message is a broadcast event relayed to every module in a scene.
// The set of variants is closed; modules switch on the concrete type
// in their Handle method and ignore what they do not care about.
type Message interface {
	isMessage()
}

// ResizeMessage announces a new scene resolution. Modules holding
// resolution dependent resources recreate them on the next frame.
type ResizeMessage struct {
	Width, Height uint32
}

// RecompileMessage asks shader modules to rebuild their programs, for
// example after an include file changed on disk.
type RecompileMessage struct{}

// SeekMessage moves the scene clock to an absolute time in seconds.
type SeekMessage struct {
	Time float64
}

// FileDropMessage carries paths dropped onto the window, in drop order.
type FileDropMessage struct {
	Paths []string
}

// First returns the first dropped path, or "" when empty.
func (m FileDropMessage) First() string {
	if len(m.Paths) == 0 {
		return ""
	}
	return m.Paths[0]
}

// RecreateTexturesMessage asks texture holding modules to drop and
// reallocate their GPU textures at the next frame boundary.
type RecreateTexturesMessage struct{}

// QuitMessage stops a realtime Run after the current frame. Export
// ignores it; exports end at the scene duration or by cancelation.
type QuitMessage struct{}

func (ResizeMessage) isMessage()           {}
func (RecompileMessage) isMessage()        {}
func (SeekMessage) isMessage()             {}
func (FileDropMessage) isMessage()         {}
func (RecreateTexturesMessage) isMessage() {}
func (QuitMessage) isMessage()             {}
