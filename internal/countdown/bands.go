package countdown

import "fmt"

// Band is a time-remaining severity level used for warnings.
type Band int

const (
	BandNone Band = iota
	BandFiveMinutes
	BandFourMinutes
	BandThreeMinutes
	BandTwoMinutes
	BandOneMinute
	BandDanger
	BandExpired
)

// BandFor maps seconds remaining onto a band.
func BandFor(remaining int) Band {
	switch {
	case remaining <= 0:
		return BandExpired
	case remaining <= 30:
		return BandDanger
	case remaining <= 60:
		return BandOneMinute
	case remaining <= 120:
		return BandTwoMinutes
	case remaining <= 180:
		return BandThreeMinutes
	case remaining <= 240:
		return BandFourMinutes
	case remaining <= 300:
		return BandFiveMinutes
	default:
		return BandNone
	}
}

func (b Band) String() string {
	switch b {
	case BandFiveMinutes:
		return "five_minutes"
	case BandFourMinutes:
		return "four_minutes"
	case BandThreeMinutes:
		return "three_minutes"
	case BandTwoMinutes:
		return "two_minutes"
	case BandOneMinute:
		return "one_minute"
	case BandDanger:
		return "danger"
	case BandExpired:
		return "expired"
	default:
		return "none"
	}
}

// MarshalText lets bands travel as their string names in JSON.
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Message is the notice shown to the user when the band is entered.
func (b Band) Message() string {
	switch b {
	case BandFiveMinutes:
		return "5 minutes remaining"
	case BandFourMinutes:
		return "4 minutes remaining"
	case BandThreeMinutes:
		return "3 minutes remaining"
	case BandTwoMinutes:
		return "2 minutes remaining"
	case BandOneMinute:
		return "1 minute remaining"
	case BandDanger:
		return "30 seconds remaining"
	case BandExpired:
		return "Time is up! Your test will be submitted automatically"
	default:
		return ""
	}
}

// BandTracker remembers the last band seen so each boundary crossing is
// reported once. It is not safe for concurrent use.
type BandTracker struct {
	last Band
	seen bool
}

// Observe returns the band for remaining and whether a warning should fire.
func (t *BandTracker) Observe(remaining int) (Band, bool) {
	b := BandFor(remaining)
	if t.seen && b == t.last {
		return b, false
	}
	t.last = b
	t.seen = true
	return b, b != BandNone
}

// Reset forgets the last band; the next Observe may fire again.
func (t *BandTracker) Reset() {
	t.last = BandNone
	t.seen = false
}

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
