package models

// Mode identifies the surface a learner reached a word through
type Mode string

const (
	// ModeDetection is casual engagement through image recognition
	ModeDetection Mode = "detection"
	// ModePractice is deliberate drilling of known words
	ModePractice Mode = "practice"
)

// Valid reports whether m is one of the known modes
func (m Mode) Valid() bool {
	return m == ModeDetection || m == ModePractice
}

func (m Mode) String() string {
	return string(m)
}
