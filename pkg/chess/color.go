package chess

// Color represent a chess color
type Color string

// Possible color variations in a chess game
const (
	White Color = "w"
	Black Color = "b"
)

// Opp returns the opposite color for the given color.
func (c Color) Opp() Color {
	if c == White {
		return Black
	}

	return White
}

// Name returns the long form used in user facing messages.
func (c Color) Name() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	}
	return ""
}

// Valid reports whether c is one of the two playing colors.
func (c Color) Valid() bool {
	return c == White || c == Black
}

func (c Color) index() int {
	if c == Black {
		return 1
	}
	return 0
}
