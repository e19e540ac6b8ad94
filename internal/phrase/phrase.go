// Package phrase generates every admissible spoken phrase for the current
// position and indexes it for matching.
//
// Two indices exist. The move index maps full move phrases (as comma-joined
// value sequences) to the legal moves they denote. The square index maps
// partial square/piece phrases to board squares, and is scoped to the
// selected source square when one is active. Both are rebuilt whenever the
// position, the legal-move set or the selection changes — a stale index is a
// correctness bug, not a performance concern, given the small move counts.
//
// Phrases are value sequences, not raw token strings: several input words
// can share a value (number and color synonyms), and the matcher expands
// values back into token alternatives at match time.
package phrase

import (
	"strings"

	"github.com/speakmate/speakmate/pkg/types"
)

// Values emitted into phrase keys. Grammar resources must bind words to
// these values for the corresponding phrases to be speakable.
const (
	ValCapture     = "x"
	ValPromote     = "="
	ValCastle      = "O-O"
	ValShortCastle = "short"
	ValLongCastle  = "long"
)

// Key joins a value sequence into a phrase key.
func Key(values ...string) string {
	return strings.Join(values, ",")
}

// SplitKey is the inverse of Key.
func SplitKey(key string) []string {
	return strings.Split(key, ",")
}

// MoveIndex maps phrase keys to the legal moves they denote. A key bound to
// more than one move is inherently ambiguous (e.g. an unqualified
// role+destination phrase with two same-role pieces in reach).
type MoveIndex map[string][]types.Move

// SquareIndex maps partial phrase keys to board squares.
type SquareIndex map[string][]types.Square

func (idx MoveIndex) add(m types.Move, values ...string) {
	key := Key(values...)
	for _, prev := range idx[key] {
		if prev == m {
			return
		}
	}
	idx[key] = append(idx[key], m)
}

func (idx SquareIndex) add(sq types.Square, values ...string) {
	key := Key(values...)
	for _, prev := range idx[key] {
		if prev == sq {
			return
		}
	}
	idx[key] = append(idx[key], sq)
}

// BuildMoveIndex enumerates every admissible phrase for each legal move in
// pos and returns the move index.
//
// Per move: the exact coordinate phrase; castle aliases for legal king
// castles; role(+minimal SAN qualifier)(+capture marker)+destination for
// non-pawn pieces; destination-only and file(+capture marker)+destination
// for pawns. Promotion moves cross-multiply every variant with the "=role"
// and bare "role" suffix spellings; the suffix-free variants are kept only
// for the queen promotion, the spoken default.
func BuildMoveIndex(pos types.Position) MoveIndex {
	idx := make(MoveIndex, len(pos.Legal)*4)

	for _, m := range pos.Legal {
		role := types.RolePawn
		if pc, ok := pos.PieceAt(m.From); ok {
			role = pc.Role
		}

		variants := [][]string{coordValues(m)}

		switch {
		case role == types.RolePawn:
			variants = append(variants, pawnVariants(pos, m)...)
		default:
			variants = append(variants, pieceVariants(pos, m, role)...)
			if role == types.RoleKing {
				for _, alias := range castleAliases(m) {
					idx.add(m, alias...)
				}
			}
		}

		for _, v := range variants {
			if m.Promotion == types.RoleNone {
				idx.add(m, v...)
				continue
			}
			r := m.Promotion.String()
			idx.add(m, append(append([]string{}, v...), ValPromote, r)...)
			idx.add(m, append(append([]string{}, v...), r)...)
			if m.Promotion == types.RoleQueen {
				idx.add(m, v...)
			}
		}
	}
	return idx
}

// coordValues returns the exact coordinate phrase of m, without promotion.
func coordValues(m types.Move) []string {
	return []string{
		string(m.From.File()), string(m.From.Rank()),
		string(m.To.File()), string(m.To.Rank()),
	}
}

// pawnVariants returns the pawn phrases for m: destination-only, and for
// captures (file change) the file+destination and file+takes+destination
// forms.
func pawnVariants(pos types.Position, m types.Move) [][]string {
	destF, destR := string(m.To.File()), string(m.To.Rank())
	variants := [][]string{{destF, destR}}

	if m.From.File() != m.To.File() {
		fromF := string(m.From.File())
		variants = append(variants,
			[]string{fromF, destF, destR},
			[]string{fromF, ValCapture, destF, destR},
		)
	}
	return variants
}

// pieceVariants returns the role phrases for a non-pawn move: unqualified
// role+destination (shared — hence ambiguous — when several same-role pieces
// reach the destination), the minimally-qualified variant when needed, and
// capture-marker forms when the destination holds an opposing piece.
func pieceVariants(pos types.Position, m types.Move, role types.Role) [][]string {
	destF, destR := string(m.To.File()), string(m.To.Rank())
	r := role.String()

	variants := [][]string{{r, destF, destR}}

	if qual := sanQualifier(pos, m, role); qual != nil {
		variants = append(variants, append(append([]string{r}, qual...), destF, destR))
	}

	if pos.IsCapture(m) {
		for _, v := range variants {
			cap := append([]string{}, v[:len(v)-2]...)
			cap = append(cap, ValCapture, destF, destR)
			variants = append(variants, cap)
		}
	}
	return variants
}

// sanQualifier computes the minimal disambiguation qualifier for m exactly as
// standard algebraic notation would: nil when the mover is the only same-role
// piece reaching the destination; otherwise its file when that is unique
// among the reachers, else its rank when unique, else file and rank.
func sanQualifier(pos types.Position, m types.Move, role types.Role) []string {
	var rivals []types.Square
	for _, o := range pos.Legal {
		if o.To != m.To || o.From == m.From {
			continue
		}
		if pc, ok := pos.PieceAt(o.From); ok && pc.Role == role {
			rivals = append(rivals, o.From)
		}
	}
	if len(rivals) == 0 {
		return nil
	}

	fileUnique, rankUnique := true, true
	for _, sq := range rivals {
		if sq.File() == m.From.File() {
			fileUnique = false
		}
		if sq.Rank() == m.From.Rank() {
			rankUnique = false
		}
	}

	switch {
	case fileUnique:
		return []string{string(m.From.File())}
	case rankUnique:
		return []string{string(m.From.Rank())}
	default:
		return []string{string(m.From.File()), string(m.From.Rank())}
	}
}

// castleAliases returns the long/short castle phrases when m is a castling
// king move (a two-file king step), nil otherwise.
func castleAliases(m types.Move) [][]string {
	df := int(m.To.File()) - int(m.From.File())
	if df != 2 && df != -2 {
		return nil
	}

	short := df > 0
	if short {
		return [][]string{
			{ValCastle},
			{ValCastle, ValShortCastle},
			{ValShortCastle, ValCastle},
			{ValShortCastle},
		}
	}
	return [][]string{
		{ValCastle, ValLongCastle},
		{ValLongCastle, ValCastle},
		{ValLongCastle},
	}
}

// BuildSquareIndex indexes partial square/piece phrases.
//
// With no selection, it indexes the origin squares of the legal moves: each
// square's file/rank phrase, its role+square phrase, and — when the number
// of same-role origins stays within roleCap — the bare role-letter phrase.
// Beyond the cap the bare role phrase is dropped and only the longer,
// disambiguated role+square phrases remain, preventing an unusable glut of
// choices.
//
// With a selection active, the index is scoped to moves originating from
// selected: each destination's file/rank phrase, plus the selected square's
// own phrase so that re-speaking it toggles the selection off instead of
// fuzzy-matching a nearby destination.
func BuildSquareIndex(pos types.Position, selected types.Square, roleCap int) SquareIndex {
	idx := make(SquareIndex)

	if selected != "" {
		idx.add(selected, string(selected.File()), string(selected.Rank()))
		for _, m := range pos.MovesFrom(selected) {
			idx.add(m.To, string(m.To.File()), string(m.To.Rank()))
		}
		return idx
	}

	origins := make(map[types.Square]types.Role)
	byRole := make(map[types.Role][]types.Square)
	for _, m := range pos.Legal {
		if _, seen := origins[m.From]; seen {
			continue
		}
		role := types.RolePawn
		if pc, ok := pos.PieceAt(m.From); ok {
			role = pc.Role
		}
		origins[m.From] = role
		byRole[role] = append(byRole[role], m.From)
	}

	for sq, role := range origins {
		idx.add(sq, string(sq.File()), string(sq.Rank()))
		if role != types.RolePawn {
			idx.add(sq, role.String(), string(sq.File()), string(sq.Rank()))
		}
	}
	for role, sqs := range byRole {
		if role == types.RolePawn || len(sqs) > roleCap {
			continue
		}
		for _, sq := range sqs {
			idx.add(sq, role.String())
		}
	}
	return idx
}
