// Package analog reads the SAR-ADC channels the kernel exposes in sysfs.
package analog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// DefaultRoot is where the ODROID-C2 kernel publishes SAR-ADC channels.
const DefaultRoot = "/sys/class/saradc"

// Reader reads one integer sample from a channel.
type Reader interface {
	ReadChannel(channel int) (int, error)
}

// Sysfs reads <Root>/ch<N>.
type Sysfs struct {
	Root string
}

// NewSysfs creates a Sysfs reader rooted at root (DefaultRoot if empty).
func NewSysfs(root string) *Sysfs {
	if root == "" {
		root = DefaultRoot
	}
	return &Sysfs{Root: root}
}

// ReadChannel reads and parses the channel's current value.
func (s *Sysfs) ReadChannel(channel int) (int, error) {
	name := filepath.Join(s.Root, fmt.Sprintf("ch%d", channel))
	data, err := os.ReadFile(name)
	if err != nil {
		return 0, fmt.Errorf("read analog channel %d: %w", channel, err)
	}
	return parseSample(data)
}

// parseSample accepts the leading decimal digits of data, ignoring
// surrounding whitespace and any trailing text.
func parseSample(data []byte) (int, error) {
	s := strings.TrimSpace(string(data))
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("parse analog sample %q: no digits", s)
	}
	return strconv.Atoi(s[:end])
}

// FakeReader is a test double returning scripted samples per channel.
type FakeReader struct {
	mu sync.Mutex

	// Samples maps channel to scripted values; the last value repeats.
	Samples map[int][]int

	// Errors maps channel to an error returned instead of a sample.
	Errors map[int]error

	// Block, if set, is received from before every read returns.
	Block chan struct{}

	index map[int]int
	reads int
}

// NewFakeReader creates a FakeReader with no samples.
func NewFakeReader() *FakeReader {
	return &FakeReader{
		Samples: make(map[int][]int),
		Errors:  make(map[int]error),
		index:   make(map[int]int),
	}
}

// ReadChannel returns the next scripted sample for channel.
func (f *FakeReader) ReadChannel(channel int) (int, error) {
	if f.Block != nil {
		<-f.Block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if err := f.Errors[channel]; err != nil {
		return 0, err
	}
	samples := f.Samples[channel]
	if len(samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	i := f.index[channel]
	if i < len(samples)-1 {
		f.index[channel] = i + 1
	}
	return samples[i], nil
}

// Set replaces the scripted samples for channel and rewinds it.
func (f *FakeReader) Set(channel int, samples ...int) {
	f.mu.Lock()
	f.Samples[channel] = samples
	f.index[channel] = 0
	f.mu.Unlock()
}

// SetError makes reads of channel fail with err (nil clears it).
func (f *FakeReader) SetError(channel int, err error) {
	f.mu.Lock()
	f.Errors[channel] = err
	f.mu.Unlock()
}

// Reads returns the number of ReadChannel calls so far.
func (f *FakeReader) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
