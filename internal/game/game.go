// Package game defines the in-memory model for a single chess game:
// metadata fields, extra tags, and the packed move token sequence.
package game

// Record is one parsed game. Empty string fields mean the source had no
// value for them.
type Record struct {
	White  string
	Black  string
	Event  string
	Site   string
	Result string
	Date   string
	ECO    string
	Tags   []Tag // tag pairs beyond the standard seven
	Moves  []Move
}

// Tag is a metadata key/value pair outside the standard roster.
type Tag struct {
	Key   string
	Value string
}

// Piece identifies a piece kind inside a move token.
type Piece uint8

const (
	PieceNone   Piece = 0
	PiecePawn   Piece = 1
	PieceKnight Piece = 2
	PieceBishop Piece = 3
	PieceRook   Piece = 4
	PieceQueen  Piece = 5
	PieceKing   Piece = 6
)

// Letter returns the SAN letter for the piece. Pawns render as 'P' here;
// movetext omits it.
func (p Piece) Letter() byte {
	switch p {
	case PiecePawn:
		return 'P'
	case PieceKnight:
		return 'N'
	case PieceBishop:
		return 'B'
	case PieceRook:
		return 'R'
	case PieceQueen:
		return 'Q'
	case PieceKing:
		return 'K'
	}
	return '?'
}

// CastleKind distinguishes the two castling moves.
type CastleKind uint8

const (
	CastleNone      CastleKind = 0
	CastleKingside  CastleKind = 1
	CastleQueenside CastleKind = 2
)
