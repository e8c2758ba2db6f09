package player

// Output abstracts the audio sink the controller drives. Implementations
// range from a real decoder pipeline to the silent sink used by headless
// agents and tests.
type Output interface {
	// Load sets the current source and resets the position to zero.
	Load(url string) error
	// Play starts or resumes playback of the loaded source.
	Play() error
	// Pause suspends playback, keeping the position.
	Pause()
	// Seek moves the position, in seconds.
	Seek(seconds float64)
	// Position reports the current position, in seconds.
	Position() float64
	// SetVolume applies a volume in [0,1].
	SetVolume(v float64)
}

// NullOutput is a silent sink. It tracks only what the controller needs
// to observe: nothing. Headless agents without an audio pipeline use it.
type NullOutput struct{}

func (NullOutput) Load(string) error { return nil }
func (NullOutput) Play() error       { return nil }
func (NullOutput) Pause()            {}
func (NullOutput) Seek(float64)      {}
func (NullOutput) Position() float64 { return 0 }
func (NullOutput) SetVolume(float64) {}
