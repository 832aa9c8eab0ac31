package session

import (
	"bytes"
	"encoding/base64"
	"strconv"
)

// outputScanner watches the raw PTY byte stream for the few control
// sequences that surface as lifecycle events: BEL, title reports (OSC 0/2),
// clipboard pushes (OSC 52), and palette changes (OSC 4/10/11/104). It is
// not a terminal emulator; everything else passes through untouched.
//
// The scanner keeps state across chunks so sequences split over reads are
// still recognized. Overlong sequences are discarded.
type outputScanner struct {
	onBell      func()
	onTitle     func(string)
	onClipboard func(string)
	onColors    func()

	state int
	seq   []byte
}

const (
	scanPlain = iota
	scanEsc       // saw ESC
	scanOsc       // inside an OSC sequence
	scanOscEsc    // saw ESC inside OSC, expecting ST terminator
)

const maxSeqLen = 8192

func (sc *outputScanner) scan(p []byte) {
	for _, b := range p {
		switch sc.state {
		case scanPlain:
			switch b {
			case 0x07:
				if sc.onBell != nil {
					sc.onBell()
				}
			case 0x1b:
				sc.state = scanEsc
			}

		case scanEsc:
			if b == ']' {
				sc.state = scanOsc
				sc.seq = sc.seq[:0]
			} else {
				sc.state = scanPlain
			}

		case scanOsc:
			switch b {
			case 0x07:
				sc.finishSequence()
			case 0x1b:
				sc.state = scanOscEsc
			default:
				if len(sc.seq) >= maxSeqLen {
					sc.state = scanPlain
					sc.seq = sc.seq[:0]
				} else {
					sc.seq = append(sc.seq, b)
				}
			}

		case scanOscEsc:
			if b == '\\' {
				sc.finishSequence()
			} else {
				// Not a string terminator; abandon the sequence.
				sc.state = scanPlain
				sc.seq = sc.seq[:0]
			}
		}
	}
}

func (sc *outputScanner) finishSequence() {
	seq := sc.seq
	sc.state = scanPlain
	sc.seq = nil

	code, rest, ok := splitOsc(seq)
	if !ok {
		return
	}

	switch code {
	case 0, 2:
		if sc.onTitle != nil {
			sc.onTitle(string(rest))
		}
	case 52:
		if text, ok := decodeClipboard(rest); ok && sc.onClipboard != nil {
			sc.onClipboard(text)
		}
	case 4, 10, 11, 104:
		if sc.onColors != nil {
			sc.onColors()
		}
	}
}

// splitOsc splits "Ps;Pt" into the numeric code and the remainder. OSC 104
// may arrive with no payload at all.
func splitOsc(seq []byte) (int, []byte, bool) {
	i := bytes.IndexByte(seq, ';')
	numPart := seq
	var rest []byte
	if i >= 0 {
		numPart = seq[:i]
		rest = seq[i+1:]
	}
	code, err := strconv.Atoi(string(numPart))
	if err != nil {
		return 0, nil, false
	}
	return code, rest, true
}

// decodeClipboard handles the OSC 52 payload "Pc;base64". Queries ("?") and
// malformed payloads are ignored.
func decodeClipboard(rest []byte) (string, bool) {
	i := bytes.IndexByte(rest, ';')
	if i < 0 {
		return "", false
	}
	data := rest[i+1:]
	if len(data) == 0 || (len(data) == 1 && data[0] == '?') {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
