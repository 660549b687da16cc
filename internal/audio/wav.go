package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 0x0001
	wavFormatExtensible = 0xfffe

	readChunk  = 4096 // samples per decoder read
	writeChunk = 4096 // samples buffered before an encoder write, must be even
)

// WAVSource reads 16-bit (or narrower) PCM samples from a WAV file.
type WAVSource struct {
	path string
	f    *os.File
	dec  *wav.Decoder

	channels   int
	sampleRate int
	bitDepth   int
	total      int // samples declared by the data chunk header
}

// OpenWAV opens path and checks that it holds mono or stereo PCM of at most
// 16 bits. Formats outside that domain fail with ErrUnsupportedFormat.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		if err := dec.Err(); err != nil && !errors.Is(err, io.EOF) {
			return nil, &IOError{Op: "read header", Path: path, Err: err}
		}
		return nil, fmt.Errorf("%s: not a WAV file: %w", path, ErrUnsupportedFormat)
	}

	src := &WAVSource{
		path:       path,
		f:          f,
		dec:        dec,
		channels:   int(dec.NumChans),
		sampleRate: int(dec.SampleRate),
		bitDepth:   int(dec.BitDepth),
	}

	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		f.Close()
		return nil, fmt.Errorf("%s: wave format 0x%04x: %w", path, dec.WavAudioFormat, ErrUnsupportedFormat)
	}
	if err := ValidateChannels(src.channels); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if src.bitDepth != 8 && src.bitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("%s: %d-bit samples: %w", path, src.bitDepth, ErrUnsupportedFormat)
	}

	n, err := dataLength(f, dec)
	if err != nil {
		f.Close()
		return nil, &IOError{Op: "read header", Path: path, Err: err}
	}
	src.total = int(n) / (src.bitDepth / 8)

	return src, nil
}

// dataLength positions dec at the start of the sample data and returns the
// byte length declared by the data chunk header. The decoder rounds odd
// lengths up to include the pad byte, so the raw field is read back from f.
func dataLength(f *os.File, dec *wav.Decoder) (uint32, error) {
	if err := dec.FwdToPCM(); err != nil {
		return 0, err
	}
	if dec.PCMChunk == nil {
		return 0, wav.ErrPCMChunkNotFound
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	var raw [4]byte
	if _, err := f.ReadAt(raw[:], pos-4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw[:]), nil
}

// NumChannels returns the channel count of the file (1 or 2).
func (s *WAVSource) NumChannels() int { return s.channels }

// SampleRate returns the sample rate declared in the file header.
func (s *WAVSource) SampleRate() int { return s.sampleRate }

// BitDepth returns the sample width declared in the file header.
func (s *WAVSource) BitDepth() int { return s.bitDepth }

// Samples yields every interleaved sample of the file as int16. 8-bit
// unsigned samples are re-centred around zero but not rescaled. Reading
// stops at the length declared by the data chunk; a file that ends before
// that yields an IOError wrapping io.ErrUnexpectedEOF. The sequence can be
// consumed once.
func (s *WAVSource) Samples() iter.Seq2[int16, error] {
	return func(yield func(int16, error) bool) {
		buf := &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: s.channels, SampleRate: s.sampleRate},
			Data:           make([]int, readChunk),
			SourceBitDepth: s.bitDepth,
		}
		remaining := s.total
		for remaining > 0 {
			buf.Data = buf.Data[:min(readChunk, remaining)]
			n, err := s.dec.PCMBuffer(buf)
			for _, v := range buf.Data[:n] {
				if !yield(s.convert(v), nil) {
					return
				}
			}
			remaining -= n
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				yield(0, &IOError{Op: "read", Path: s.path, Err: err})
				return
			}
			if n == 0 {
				break
			}
		}
		if remaining > 0 {
			yield(0, &IOError{Op: "read", Path: s.path, Err: io.ErrUnexpectedEOF})
		}
	}
}

func (s *WAVSource) convert(v int) int16 {
	if s.bitDepth == 8 {
		return int16(v - 128)
	}
	return int16(v)
}

// Close releases the underlying file.
func (s *WAVSource) Close() error {
	if err := s.f.Close(); err != nil {
		return &IOError{Op: "close", Path: s.path, Err: err}
	}
	return nil
}

// WAVSink writes 2-channel, 44100 Hz, 16-bit PCM to a WAV file. The RIFF
// and data chunk lengths are only correct after Finalize.
type WAVSink struct {
	path string
	f    *os.File
	enc  *wav.Encoder
	buf  *goaudio.IntBuffer

	finalized bool
	closed    bool
}

// CreateWAV creates (or truncates) path and starts its data chunk.
func CreateWAV(path string) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}

	s := &WAVSink{
		path: path,
		f:    f,
		enc:  wav.NewEncoder(f, SampleRate, BitDepth, Channels, wavFormatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
			Data:           make([]int, 0, writeChunk),
			SourceBitDepth: BitDepth,
		},
	}

	// Writing an empty buffer emits the header and the data chunk id, so a
	// run with zero frames still finalizes into a well-formed file.
	if err := s.enc.Write(s.buf); err != nil {
		f.Close()
		return nil, &IOError{Op: "write header", Path: path, Err: err}
	}
	return s, nil
}

// WriteSample appends one interleaved sample.
func (s *WAVSink) WriteSample(v int16) error {
	if s.closed {
		return &IOError{Op: "write", Path: s.path, Err: os.ErrClosed}
	}
	s.buf.Data = append(s.buf.Data, int(v))
	if len(s.buf.Data) == cap(s.buf.Data) {
		return s.flush()
	}
	return nil
}

func (s *WAVSink) flush() error {
	if len(s.buf.Data) == 0 {
		return nil
	}
	if err := s.enc.Write(s.buf); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	s.buf.Data = s.buf.Data[:0]
	return nil
}

// Finalize flushes buffered samples, commits the container lengths and
// closes the file. It may be called once.
func (s *WAVSink) Finalize() error {
	if s.closed {
		return &IOError{Op: "finalize", Path: s.path, Err: os.ErrClosed}
	}
	s.closed = true

	if err := s.flush(); err != nil {
		s.f.Close()
		return err
	}
	if err := s.enc.Close(); err != nil {
		s.f.Close()
		return &IOError{Op: "finalize", Path: s.path, Err: err}
	}
	if err := s.f.Close(); err != nil {
		return &IOError{Op: "close", Path: s.path, Err: err}
	}
	s.finalized = true
	return nil
}

// Finalized reports whether Finalize completed.
func (s *WAVSink) Finalized() bool { return s.finalized }

// Close releases the file without finalizing it. Samples already written are
// flushed to disk but the header lengths are left as they were. Close after
// Finalize is a no-op.
func (s *WAVSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	flushErr := s.flush()
	if err := s.f.Close(); err != nil {
		return &IOError{Op: "close", Path: s.path, Err: err}
	}
	return flushErr
}
