// Package pgnconv converts between PGN text and archive game records:
// a Converter feeds parsed PGN games into an archive builder, an
// Exporter renders archived games back to PGN.
package pgnconv

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/freeeve/cbin/internal/archive"
	"github.com/freeeve/cbin/internal/game"
)

// standardTags are the roster fields that map to Record fields instead
// of extra tags.
var standardTags = map[string]bool{
	"Event":  true,
	"Site":   true,
	"Date":   true,
	"White":  true,
	"Black":  true,
	"Result": true,
	"ECO":    true,
}

// ConvertConfig configures a Converter. The zero value is usable.
type ConvertConfig struct {
	MaxGames int            // stop after this many games, 0 = unlimited
	Logger   zerolog.Logger // defaults to a nop logger
}

// ConvertStats summarizes one conversion run.
type ConvertStats struct {
	Games   int64
	Skipped int64 // games dropped because their moves could not be replayed
	Elapsed time.Duration
}

// Converter streams parsed PGN games into an archive builder.
type Converter struct {
	b   *archive.Builder
	cfg ConvertConfig
	log zerolog.Logger
}

func NewConverter(b *archive.Builder, cfg ConvertConfig) *Converter {
	return &Converter{b: b, cfg: cfg, log: cfg.Logger}
}

// ConvertFile parses the PGN file at path (plain or .pgn.zst, the
// parser handles both) and adds every game to the builder in file
// order. Games whose movetext fails to replay are skipped and counted,
// not fatal; parser and builder errors are.
func (c *Converter) ConvertFile(ctx context.Context, path string) (ConvertStats, error) {
	start := time.Now()
	lastLog := start
	var stats ConvertStats

	parser := pgn.Games(path)
	stopped := false
gameLoop:
	for g := range parser.Games {
		select {
		case <-ctx.Done():
			if !stopped {
				parser.Stop()
				stopped = true
			}
			break gameLoop
		default:
		}

		if c.cfg.MaxGames > 0 && stats.Games >= int64(c.cfg.MaxGames) {
			c.log.Info().Int64("games", stats.Games).Msg("reached max games limit")
			parser.Stop()
			stopped = true
			break gameLoop
		}

		rec, err := RecordFromGame(g)
		if err != nil {
			c.log.Warn().Err(err).Int64("game", stats.Games+stats.Skipped).Msg("skipping game")
			stats.Skipped++
			continue
		}
		if err := c.b.Add(rec); err != nil {
			return stats, fmt.Errorf("add game %d: %w", stats.Games, err)
		}
		stats.Games++

		if time.Since(lastLog) > 10*time.Second {
			elapsed := time.Since(start)
			c.log.Info().
				Int64("games", stats.Games).
				Int64("skipped", stats.Skipped).
				Float64("games_per_sec", float64(stats.Games)/elapsed.Seconds()).
				Msg("convert progress")
			lastLog = time.Now()
		}
	}

	if err := parser.Err(); err != nil {
		return stats, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	stats.Elapsed = time.Since(start)
	return stats, nil
}

// RecordFromGame maps a parsed PGN game to a record: the seven roster
// tags become Record fields, remaining tags (sorted by key so equal
// inputs produce equal archives) become extra Tags, and the movetext is
// replayed to derive each move's piece, capture, and castle bits.
func RecordFromGame(g *pgn.Game) (*game.Record, error) {
	rec := &game.Record{
		Event:  g.Tags["Event"],
		Site:   g.Tags["Site"],
		Date:   g.Tags["Date"],
		White:  g.Tags["White"],
		Black:  g.Tags["Black"],
		Result: g.Tags["Result"],
		ECO:    g.Tags["ECO"],
	}

	var extra []string
	for k := range g.Tags {
		if !standardTags[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		rec.Tags = append(rec.Tags, game.Tag{Key: k, Value: g.Tags[k]})
	}

	pos := pgn.NewStartingPosition()
	rec.Moves = make([]game.Move, 0, len(g.Moves))
	for i, mv := range g.Moves {
		tok, err := packMove(pos, mv)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		rec.Moves = append(rec.Moves, tok)
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return nil, fmt.Errorf("apply move %d: %w", i+1, err)
		}
	}
	return rec, nil
}

// packMove derives a move token from the move and the position it is
// played in. Flags 4 = castle, 2 = en passant (the capture a
// destination-square probe misses).
func packMove(pos *pgn.GameState, mv pgn.Mv) (game.Move, error) {
	if mv.Flags == 4 {
		if mv.To > mv.From {
			return game.CastleMove(game.CastleKingside), nil
		}
		return game.CastleMove(game.CastleQueenside), nil
	}

	piece := pieceFromByte(pos.PieceAt(mv.From))
	if piece == game.PieceNone {
		return 0, fmt.Errorf("no piece on %s", game.SquareName(int(mv.From)))
	}
	capture := pos.PieceAt(mv.To) != 0 || (piece == game.PiecePawn && mv.Flags == 2)

	from := int(mv.From)
	fromFile, fromRank := -1, -1
	if piece == game.PiecePawn {
		// Pawn SAN only ever needs the origin file, and only on capture.
		if capture {
			fromFile = from % 8
		}
	} else {
		fromFile, fromRank = from%8, from/8
	}
	promo := game.PieceNone
	switch mv.Promo {
	case pgn.PromoQueen:
		promo = game.PieceQueen
	case pgn.PromoRook:
		promo = game.PieceRook
	case pgn.PromoBishop:
		promo = game.PieceBishop
	case pgn.PromoKnight:
		promo = game.PieceKnight
	}
	return game.EncodeMove(piece, int(mv.To), capture, promo, fromFile, fromRank), nil
}

func pieceFromByte(b byte) game.Piece {
	if b >= 'a' && b <= 'z' {
		b -= 32
	}
	switch b {
	case 'P':
		return game.PiecePawn
	case 'N':
		return game.PieceKnight
	case 'B':
		return game.PieceBishop
	case 'R':
		return game.PieceRook
	case 'Q':
		return game.PieceQueen
	case 'K':
		return game.PieceKing
	}
	return game.PieceNone
}
