package scrutiny

import "fmt"

// Congratulations renders one congratulatory line per winner, the text
// handed to the post-close notification sink.  Tied roles get a neutral
// message so nobody is congratulated before a tie is resolved.
func Congratulations(winners []Winner) []string {
	out := make([]string, 0, len(winners))
	for _, w := range winners {
		if w.Tied {
			out = append(out, fmt.Sprintf("The election for %s ended in a tie at %d votes; results are pending review.",
				w.RoleTitle, w.Votes))
			continue
		}
		out = append(out, fmt.Sprintf("Congratulations to %s (#%d), elected %s with %d votes!",
			w.Name, w.Number, w.RoleTitle, w.Votes))
	}
	return out
}
