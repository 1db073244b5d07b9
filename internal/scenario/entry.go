package scenario

import "fmt"

// EntryStatus classifies the outcome of entry-line resolution.
type EntryStatus int

const (
	EntryNone EntryStatus = iota
	EntryUnique
	EntryAmbiguous
)

func (s EntryStatus) String() string {
	switch s {
	case EntryUnique:
		return "unique"
	case EntryAmbiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// EntryResult is the entry line of a scenario, or the reason there is none.
// Candidates lists every untargeted line when Status is EntryAmbiguous.
type EntryResult struct {
	Status     EntryStatus
	Index      int
	GUID       string
	Candidates []string
}

func (r EntryResult) OK() bool { return r.Status == EntryUnique }

func (r EntryResult) String() string {
	switch r.Status {
	case EntryUnique:
		return fmt.Sprintf("unique(%s)", r.GUID)
	case EntryAmbiguous:
		return fmt.Sprintf("ambiguous(%v)", r.Candidates)
	default:
		return "none"
	}
}

// ResolveEntry finds the single line that no other line in the set targets.
// A line targeting itself does not count as targeted. Targets naming GUIDs
// outside the set are ignored.
func ResolveEntry(lines []Line) EntryResult {
	pos := make(map[string]int, len(lines))
	for i := range lines {
		pos[lines[i].GUID] = i
	}
	next := make([][]int, len(lines))
	for i := range lines {
		for _, g := range lines[i].Next {
			if j, ok := pos[g]; ok {
				next[i] = append(next[i], j)
			}
		}
	}
	return resolveEntry(lines, next)
}

func resolveEntry(lines []Line, next [][]int) EntryResult {
	targeted := make([]bool, len(lines))
	for i, succ := range next {
		for _, j := range succ {
			if j != i {
				targeted[j] = true
			}
		}
	}
	var candidates []int
	for i := range lines {
		if !targeted[i] {
			candidates = append(candidates, i)
		}
	}
	switch len(candidates) {
	case 0:
		return EntryResult{Status: EntryNone, Index: -1}
	case 1:
		i := candidates[0]
		return EntryResult{Status: EntryUnique, Index: i, GUID: lines[i].GUID}
	default:
		res := EntryResult{Status: EntryAmbiguous, Index: -1}
		for _, i := range candidates {
			res.Candidates = append(res.Candidates, lines[i].GUID)
		}
		return res
	}
}
