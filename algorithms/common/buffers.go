package common

// RingBuffer is a fixed-capacity FIFO of float64 that is always full:
// it starts zero-filled and every Push evicts the oldest value.
type RingBuffer struct {
	buffer []float64
	head   int // index of the oldest value
}

// NewRingBuffer creates a zero-filled ring of the given capacity (minimum 1)
func NewRingBuffer(capacity int) *RingBuffer {
	capacity = max(capacity, 1)
	return &RingBuffer{
		buffer: make([]float64, capacity),
	}
}

// Push drops the oldest value and appends v as the newest
func (rb *RingBuffer) Push(v float64) {
	rb.buffer[rb.head] = v
	rb.head = (rb.head + 1) % len(rb.buffer)
}

// Len returns the number of stored values, which always equals the capacity
func (rb *RingBuffer) Len() int {
	return len(rb.buffer)
}

// At returns the i-th value counted from the oldest
func (rb *RingBuffer) At(i int) float64 {
	return rb.buffer[(rb.head+i)%len(rb.buffer)]
}

// Latest returns the most recently pushed value
func (rb *RingBuffer) Latest() float64 {
	return rb.At(len(rb.buffer) - 1)
}

// Snapshot copies the contents, oldest first
func (rb *RingBuffer) Snapshot() []float64 {
	out := make([]float64, len(rb.buffer))
	n := copy(out, rb.buffer[rb.head:])
	copy(out[n:], rb.buffer[:rb.head])
	return out
}

// Reset zero-fills the ring
func (rb *RingBuffer) Reset() {
	for i := range rb.buffer {
		rb.buffer[i] = 0.0
	}
	rb.head = 0
}

// SlidingWindow implements a sliding window for frame-based processing
type SlidingWindow struct {
	buffer     []float64
	windowSize int
	hopSize    int
	writePos   int
}

// NewSlidingWindow creates a new sliding window
func NewSlidingWindow(windowSize, hopSize int) *SlidingWindow {
	return &SlidingWindow{
		buffer:     make([]float64, windowSize),
		windowSize: windowSize,
		hopSize:    hopSize,
	}
}

// AddSamples adds samples and returns frames when ready
func (sw *SlidingWindow) AddSamples(samples []float64) [][]float64 {
	var frames [][]float64

	for _, sample := range samples {
		sw.buffer[sw.writePos] = sample
		sw.writePos++

		if sw.writePos >= sw.windowSize {
			frame := make([]float64, sw.windowSize)
			copy(frame, sw.buffer)
			frames = append(frames, frame)

			if sw.hopSize < sw.windowSize {
				// Overlap: shift buffer left by hopSize
				copy(sw.buffer, sw.buffer[sw.hopSize:])
				sw.writePos = sw.windowSize - sw.hopSize
			} else {
				sw.writePos = 0
			}
		}
	}

	return frames
}

// Buffered returns how many samples are waiting for the next frame
func (sw *SlidingWindow) Buffered() int {
	return sw.writePos
}

// Reset clears the sliding window
func (sw *SlidingWindow) Reset() {
	sw.writePos = 0
	for i := range sw.buffer {
		sw.buffer[i] = 0.0
	}
}

// GetWindowSize returns the window size
func (sw *SlidingWindow) GetWindowSize() int {
	return sw.windowSize
}

// GetHopSize returns the hop size
func (sw *SlidingWindow) GetHopSize() int {
	return sw.hopSize
}
