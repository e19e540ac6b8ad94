// Package types defines the shared types used across all speakmate packages.
//
// These types form the lingua franca between the lexicon, the phrase indexer,
// the matcher and the voice controller. They are intentionally minimal — each
// package defines its own domain types, but cross-cutting data structures live
// here to avoid circular imports.
package types

import (
	"fmt"
	"strings"
)

// Color identifies a side of the board.
type Color int8

const (
	White Color = iota
	Black
)

// String returns "white" or "black".
func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Role is a piece role, encoded as its uppercase SAN letter.
// RoleNone marks the absence of a role (e.g. no promotion).
type Role byte

const (
	RoleNone   Role = 0
	RoleKing   Role = 'K'
	RoleQueen  Role = 'Q'
	RoleRook   Role = 'R'
	RoleBishop Role = 'B'
	RoleKnight Role = 'N'
	RolePawn   Role = 'P'
)

// PromotableRoles lists the roles a pawn may promote to, in the order they
// are enumerated when building promotion phrases.
var PromotableRoles = []Role{RoleQueen, RoleRook, RoleBishop, RoleKnight}

// String returns the SAN letter of the role, or "" for RoleNone.
func (r Role) String() string {
	if r == RoleNone {
		return ""
	}
	return string(rune(r))
}

// roleOfFENChar maps a lowercase FEN piece character to its role.
func roleOfFENChar(c byte) (Role, bool) {
	switch c {
	case 'k':
		return RoleKing, true
	case 'q':
		return RoleQueen, true
	case 'r':
		return RoleRook, true
	case 'b':
		return RoleBishop, true
	case 'n':
		return RoleKnight, true
	case 'p':
		return RolePawn, true
	}
	return RoleNone, false
}

// Square is a board coordinate in algebraic form, e.g. "e4".
type Square string

// MakeSquare builds a Square from a file ('a'..'h') and a rank ('1'..'8').
func MakeSquare(file, rank byte) Square {
	return Square([]byte{file, rank})
}

// File returns the file character ('a'..'h'), or 0 for an invalid square.
func (s Square) File() byte {
	if !s.Valid() {
		return 0
	}
	return s[0]
}

// Rank returns the rank character ('1'..'8'), or 0 for an invalid square.
func (s Square) Rank() byte {
	if !s.Valid() {
		return 0
	}
	return s[1]
}

// Valid reports whether s names a square on the board.
func (s Square) Valid() bool {
	return len(s) == 2 &&
		s[0] >= 'a' && s[0] <= 'h' &&
		s[1] >= '1' && s[1] <= '8'
}

// Piece is an occupant of a square.
type Piece struct {
	Role  Role
	Color Color
}

// Move is a move identifier: a coordinate pair plus an optional promotion
// role. It is the unit the matcher ranks and the mover submits.
type Move struct {
	From      Square
	To        Square
	Promotion Role
}

// UCI renders the move in UCI coordinate form, e.g. "e7e8q".
func (m Move) UCI() string {
	s := string(m.From) + string(m.To)
	if m.Promotion != RoleNone {
		s += strings.ToLower(m.Promotion.String())
	}
	return s
}

// ParseUCI parses a 4- or 5-character UCI move string.
func ParseUCI(s string) (Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("types: uci move %q: bad length", s)
	}
	m := Move{From: Square(s[0:2]), To: Square(s[2:4])}
	if !m.From.Valid() || !m.To.Valid() {
		return Move{}, fmt.Errorf("types: uci move %q: bad square", s)
	}
	if len(s) == 5 {
		r, ok := roleOfFENChar(s[4])
		if !ok || r == RoleKing || r == RolePawn {
			return Move{}, fmt.Errorf("types: uci move %q: bad promotion", s)
		}
		m.Promotion = r
	}
	return m, nil
}

// Position is the board snapshot supplied by the external rules engine after
// every ply: occupancy, side to move and the exhaustive legal-move set.
// Legality is consumed here, never computed.
type Position struct {
	Pieces map[Square]Piece
	Turn   Color
	Legal  []Move
}

// PieceAt returns the piece on sq, if any.
func (p Position) PieceAt(sq Square) (Piece, bool) {
	pc, ok := p.Pieces[sq]
	return pc, ok
}

// IsCapture reports whether m lands on a square occupied by the opponent.
// En passant is not reported; the capture-marker phrase is an alias, so a
// missed alias only removes one admissible phrasing.
func (p Position) IsCapture(m Move) bool {
	pc, ok := p.Pieces[m.To]
	return ok && pc.Color != p.Turn
}

// MovesFrom returns the legal moves originating at sq.
func (p Position) MovesFrom(sq Square) []Move {
	var out []Move
	for _, m := range p.Legal {
		if m.From == sq {
			out = append(out, m)
		}
	}
	return out
}

// PositionFromFEN builds a Position from the board field of a FEN string and
// a list of legal moves in UCI form. Only the first two FEN fields are read;
// castling/en-passant rights are implied by the legal-move list.
func PositionFromFEN(fen string, legalUCI []string) (Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return Position{}, fmt.Errorf("types: fen %q: want at least board and turn fields", fen)
	}

	pos := Position{Pieces: make(map[Square]Piece, 32)}

	rank := byte('8')
	file := byte('a')
	for i := 0; i < len(fields[0]); i++ {
		c := fields[0][i]
		switch {
		case c == '/':
			if rank == '1' {
				return Position{}, fmt.Errorf("types: fen %q: too many ranks", fen)
			}
			rank--
			file = 'a'
		case c >= '1' && c <= '8':
			file += c - '0'
		default:
			lower := c | 0x20
			role, ok := roleOfFENChar(lower)
			if !ok || file > 'h' {
				return Position{}, fmt.Errorf("types: fen %q: bad piece placement at offset %d", fen, i)
			}
			color := White
			if c >= 'a' {
				color = Black
			}
			pos.Pieces[MakeSquare(file, rank)] = Piece{Role: role, Color: color}
			file++
		}
	}

	switch fields[1] {
	case "w":
		pos.Turn = White
	case "b":
		pos.Turn = Black
	default:
		return Position{}, fmt.Errorf("types: fen %q: bad turn field %q", fen, fields[1])
	}

	pos.Legal = make([]Move, 0, len(legalUCI))
	for _, u := range legalUCI {
		m, err := ParseUCI(u)
		if err != nil {
			return Position{}, err
		}
		pos.Legal = append(pos.Legal, m)
	}
	return pos, nil
}

// TranscriptKind distinguishes complete utterances from interim output.
type TranscriptKind int

const (
	// TranscriptFull is a complete, final utterance.
	TranscriptFull TranscriptKind = iota

	// TranscriptPartial is an interim token from the recognizer. Partials
	// are only inspected for the narrow label/cancel vocabulary while an
	// ambiguity countdown is armed.
	TranscriptPartial
)

// Transcript is a single recognizer event.
type Transcript struct {
	Kind TranscriptKind

	// Text is the recognized speech content.
	Text string

	// Confidence is the recognizer's overall confidence (0.0–1.0). Zero when
	// the recognizer does not report one.
	Confidence float64
}

// Command enumerates the fixed UI command vocabulary. Commands are dispatched
// by exact value match before any move matching is attempted.
type Command int

const (
	CmdHelp Command = iota
	CmdStop
	CmdFlip
	CmdResign
	CmdDraw
	CmdRematch
	CmdTakebackYes
	CmdTakebackNo
	CmdUpvote
	CmdDownvote
	CmdSleep
	CmdWake
)

// commandNames is indexed by Command.
var commandNames = []string{
	"help", "stop", "flip", "resign", "draw", "rematch",
	"takeback-yes", "takeback-no", "upvote", "downvote", "sleep", "wake",
}

// String returns the stable name of the command.
func (c Command) String() string {
	if int(c) < 0 || int(c) >= len(commandNames) {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return commandNames[c]
}

// ActionKind tags the outcome of resolving one transcript.
type ActionKind int

const (
	// ActionNone: the utterance produced no effect. Unparseable input lands
	// here, never in an error.
	ActionNone ActionKind = iota

	// ActionCommand: a UI command was dispatched.
	ActionCommand

	// ActionConfirmation: a pending confirmation request was resolved.
	ActionConfirmation

	// ActionMove: a move was submitted to the mover.
	ActionMove

	// ActionSelect: a source square was selected (or deselected).
	ActionSelect

	// ActionChoices: ambiguity — labeled choices were presented.
	ActionChoices
)

// Choice binds a spoken label to a candidate move during an ambiguity
// session.
type Choice struct {
	Label string
	Move  Move

	// Cost is the candidate's match cost at the time the session opened.
	Cost float64
}

// Action is the outcome of resolving one transcript. Exactly the fields
// relevant to Kind are populated.
type Action struct {
	Kind ActionKind

	// Command is set for ActionCommand.
	Command Command

	// Request and Accepted are set for ActionConfirmation.
	Request  string
	Accepted bool

	// Move is set for ActionMove, Cost to the winning candidate's match
	// cost.
	Move Move
	Cost float64

	// Square is set for ActionSelect; Selected is false when the utterance
	// toggled an existing selection off.
	Square   Square
	Selected bool

	// Choices is set for ActionChoices, in rank order.
	Choices []Choice
}

// Hint is a labeled visual marker for one ambiguity choice, rendered by the
// board UI at the choice's destination square.
type Hint struct {
	Square Square
	Label  string
}
