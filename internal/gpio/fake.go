package gpio

import "sync"

// FakeLine is a test double that records writes and returns scripted levels.
type FakeLine struct {
	mu sync.Mutex

	// Levels are returned by successive Level calls; the last one repeats.
	// With no levels configured Level returns the last written level.
	Levels []bool
	idx    int

	Writes   []bool
	Output   bool
	ReadErr  error
	WriteErr error
	Closed   bool
}

func (f *FakeLine) Level() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return false, f.ReadErr
	}
	if len(f.Levels) == 0 {
		if n := len(f.Writes); n > 0 {
			return f.Writes[n-1], nil
		}
		return false, nil
	}
	v := f.Levels[f.idx]
	if f.idx < len(f.Levels)-1 {
		f.idx++
	}
	return v, nil
}

func (f *FakeLine) SetLevel(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Output {
		return ErrInputLine
	}
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.Writes = append(f.Writes, high)
	return nil
}

func (f *FakeLine) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

func (f *FakeLine) LastWrite() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Writes) == 0 {
		return false, false
	}
	return f.Writes[len(f.Writes)-1], true
}
