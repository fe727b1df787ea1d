package component

// SoundScript runs a tengo script every frame with access to the scene's
// sound players.
type SoundScript struct {
	Path   string
	Source []byte
	// Frame counts the updates the script has run for.
	Frame int
	// Disabled stops the script after a runtime error.
	Disabled bool
}

var SoundScriptComponent = NewComponent[SoundScript]()
