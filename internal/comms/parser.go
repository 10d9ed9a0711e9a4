package comms

import "encoding/binary"

type parserState int

const (
	parserFindSync parserState = iota
	parserHeader
	parserPayload
	parserCksum
)

// Parser reassembles frames from an unsynchronized byte stream one byte at a
// time. A checksum failure aborts only that frame; the caller keeps feeding
// bytes and the parser locks back on at the next valid sync pattern.
type Parser struct {
	state      parserState
	buf        []byte
	payloadLen int
}

// NewParser returns a parser hunting for the first sync byte.
func NewParser() *Parser {
	return &Parser{state: parserFindSync}
}

// Feed consumes a single stream byte. It returns a decoded packet when the
// byte completes a valid frame, nil when more bytes are needed, and an error
// when the completed frame fails validation.
func (p *Parser) Feed(b byte) (Packet, error) {
	switch p.state {
	case parserFindSync:
		if b != syncByte1 {
			return nil, nil
		}
		p.buf = append(p.buf[:0], b)
		p.state = parserHeader

	case parserHeader:
		if len(p.buf) == 1 && b != syncByte2 {
			// False sync; resume the hunt, re-considering this byte.
			p.state = parserFindSync
			return p.Feed(b)
		}
		p.buf = append(p.buf, b)
		if len(p.buf) == frameHeaderLen {
			p.payloadLen = int(binary.LittleEndian.Uint16(p.buf[4:6]))
			if p.payloadLen == 0 {
				p.state = parserCksum
			} else {
				p.state = parserPayload
			}
		}

	case parserPayload:
		p.buf = append(p.buf, b)
		if len(p.buf) == frameHeaderLen+p.payloadLen {
			p.state = parserCksum
		}

	case parserCksum:
		p.buf = append(p.buf, b)
		if len(p.buf) == frameHeaderLen+p.payloadLen+frameCRCLen {
			frame := p.buf
			p.reset()
			return Decode(frame)
		}
	}
	return nil, nil
}

// FeedBytes consumes a chunk of stream bytes and returns every packet
// completed within it, plus the first validation error encountered.
// Parsing continues past a bad frame so later packets still decode.
func (p *Parser) FeedBytes(data []byte) ([]Packet, error) {
	var packets []Packet
	var firstErr error
	for _, b := range data {
		pkt, err := p.Feed(b)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if pkt != nil {
			packets = append(packets, pkt)
		}
	}
	return packets, firstErr
}

func (p *Parser) reset() {
	p.state = parserFindSync
	p.buf = nil
	p.payloadLen = 0
}
