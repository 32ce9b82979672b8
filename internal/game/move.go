package game

// Move encoding (uint32):
//   bits 0-5:   destination square (0-63)
//   bits 6-8:   moved piece (1=P, 2=N, 3=B, 4=R, 5=Q, 6=K)
//   bits 9-11:  promotion piece (0=none, else piece code)
//   bit 12:     capture flag
//   bits 13-14: castle (0=none, 1=kingside, 2=queenside)
//   bits 15-18: origin file (0=unspecified, 1-8=a-h)
//   bits 19-22: origin rank (0=unspecified, 1-8)
//   bits 23-31: reserved
//
// Equal moves always pack to equal tokens, which is what makes opening
// sequences deduplicate byte-for-byte.

const (
	moveToMask        = 0x3F     // bits 0-5
	movePieceMask     = 0x1C0    // bits 6-8
	movePieceShift    = 6
	movePromoMask     = 0xE00    // bits 9-11
	movePromoShift    = 9
	moveCaptureFlag   = 0x1000   // bit 12
	moveCastleMask    = 0x6000   // bits 13-14
	moveCastleShift   = 13
	moveFromFileMask  = 0x78000  // bits 15-18
	moveFromFileShift = 15
	moveFromRankMask  = 0x780000 // bits 19-22
	moveFromRankShift = 19
)

// Move is one move token, packed into a uint32.
type Move uint32

// EncodeMove packs a regular (non-castling) move.
// to: destination square index 0-63 (A1=0, B1=1, ..., H8=63)
// promo: promotion piece or PieceNone
// fromFile, fromRank: origin coordinates 0-7, or -1 when unspecified
func EncodeMove(piece Piece, to int, capture bool, promo Piece, fromFile, fromRank int) Move {
	if to < 0 || to > 63 {
		return 0
	}
	m := uint32(to) | (uint32(piece)&7)<<movePieceShift | (uint32(promo)&7)<<movePromoShift
	if capture {
		m |= moveCaptureFlag
	}
	if fromFile >= 0 && fromFile <= 7 {
		m |= uint32(fromFile+1) << moveFromFileShift
	}
	if fromRank >= 0 && fromRank <= 7 {
		m |= uint32(fromRank+1) << moveFromRankShift
	}
	return Move(m)
}

// CastleMove packs a castling move of the given kind.
func CastleMove(kind CastleKind) Move {
	return Move((uint32(kind) & 3) << moveCastleShift)
}

// To returns the destination square index (0-63).
func (m Move) To() int {
	return int(m & moveToMask)
}

// Piece returns the moved piece.
func (m Move) Piece() Piece {
	return Piece((m & movePieceMask) >> movePieceShift)
}

// Promotion returns the promotion piece, or PieceNone.
func (m Move) Promotion() Piece {
	return Piece((m & movePromoMask) >> movePromoShift)
}

// IsCapture reports whether the move captures (en passant included).
func (m Move) IsCapture() bool {
	return m&moveCaptureFlag != 0
}

// Castle returns the castle kind, or CastleNone for regular moves.
func (m Move) Castle() CastleKind {
	return CastleKind((m & moveCastleMask) >> moveCastleShift)
}

// FromFile returns the origin file (0-7), or -1 when unspecified.
func (m Move) FromFile() int {
	v := (m & moveFromFileMask) >> moveFromFileShift
	if v == 0 {
		return -1
	}
	return int(v) - 1
}

// FromRank returns the origin rank (0-7), or -1 when unspecified.
func (m Move) FromRank() int {
	v := (m & moveFromRankMask) >> moveFromRankShift
	if v == 0 {
		return -1
	}
	return int(v) - 1
}

// String renders the move as SAN with whatever origin coordinates the
// token carries (e.g. "e4", "exd5", "Ng1f3", "e8=Q", "O-O"). Check and
// mate suffixes are not stored, so none are emitted.
func (m Move) String() string {
	switch m.Castle() {
	case CastleKingside:
		return "O-O"
	case CastleQueenside:
		return "O-O-O"
	}
	dest := SquareName(m.To())
	buf := make([]byte, 0, 8)
	p := m.Piece()
	if p == PiecePawn || p == PieceNone {
		if m.IsCapture() {
			if f := m.FromFile(); f >= 0 {
				buf = append(buf, byte('a'+f))
			}
			buf = append(buf, 'x')
		}
		buf = append(buf, dest...)
	} else {
		buf = append(buf, p.Letter())
		if f := m.FromFile(); f >= 0 {
			buf = append(buf, byte('a'+f))
		}
		if r := m.FromRank(); r >= 0 {
			buf = append(buf, byte('1'+r))
		}
		if m.IsCapture() {
			buf = append(buf, 'x')
		}
		buf = append(buf, dest...)
	}
	if promo := m.Promotion(); promo != PieceNone {
		buf = append(buf, '=', promo.Letter())
	}
	return string(buf)
}

// Square returns the index for file and rank coordinates (each 0-7).
func Square(file, rank int) int {
	return rank*8 + file
}

// SquareName returns algebraic coordinates for a square index (0-63).
func SquareName(sq int) string {
	if sq < 0 || sq > 63 {
		return "??"
	}
	return string([]byte{byte('a' + sq%8), byte('1' + sq/8)})
}
