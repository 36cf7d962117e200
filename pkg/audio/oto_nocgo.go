//go:build nocgo

package audio

// NewOtoOutput reports that audio is unavailable in builds without cgo.
func NewOtoOutput(sampleRate, channels int) (Output, error) {
	return nil, ErrUnavailable
}
