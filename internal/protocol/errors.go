package protocol

import "errors"

// Decode errors.
var (
	ErrFrameTooLong   = errors.New("protocol: frame too long")
	ErrUnknownTag     = errors.New("protocol: unknown message tag")
	ErrFieldCount     = errors.New("protocol: wrong amount of fields")
	ErrInvalidMove    = errors.New("protocol: invalid move format")
	ErrInvalidOutcome = errors.New("protocol: invalid game state")
	ErrBoardChar      = errors.New("protocol: invalid board character")
	ErrBoardLength    = errors.New("protocol: invalid board length")
)

// Encode errors.
var (
	ErrInvalidPromotion = errors.New("protocol: invalid promotion piece")
	ErrMessageTooLong   = errors.New("protocol: message too long for frame")
	ErrInvalidReason    = errors.New("protocol: quit reason contains separator")
)

var decodeErrors = []error{
	ErrFrameTooLong, ErrUnknownTag, ErrFieldCount, ErrInvalidMove,
	ErrInvalidOutcome, ErrBoardChar, ErrBoardLength,
}

// IsDecodeError reports whether err came from Decode rejecting a frame.
func IsDecodeError(err error) bool {
	for _, target := range decodeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
