package ingest

import "bytes"

// SniffBytes is how much of a file Sniff looks at.
const SniffBytes = 4096

var candidates = []rune{',', ';', '\t'}

// Sniff guesses the delimiter of delimited text from its first bytes. A
// candidate that splits every complete line into the same number of fields
// wins over one that does not; ties go to the candidate with more fields in
// the header, then to the order comma, semicolon, tab. Text with no
// candidate at all is read as comma separated.
func Sniff(prefix []byte) rune {
	lines := bytes.Split(prefix, []byte("\n"))
	if len(lines) > 1 && len(prefix) >= SniffBytes {
		// The last line was probably cut by the prefix limit.
		lines = lines[:len(lines)-1]
	}
	var kept [][]byte
	for _, l := range lines {
		if l = bytes.TrimRight(l, "\r"); len(l) > 0 {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return ','
	}

	best, bestCount, bestConsistent := ',', 0, false
	for _, c := range candidates {
		header := countOutsideQuotes(kept[0], c)
		if header == 0 {
			continue
		}
		consistent := true
		for _, l := range kept[1:] {
			if countOutsideQuotes(l, c) != header {
				consistent = false
				break
			}
		}
		switch {
		case consistent && !bestConsistent,
			consistent == bestConsistent && header > bestCount:
			best, bestCount, bestConsistent = c, header, consistent
		}
	}
	return best
}

func countOutsideQuotes(line []byte, delim rune) int {
	n, quoted := 0, false
	for _, b := range line {
		switch {
		case b == '"':
			quoted = !quoted
		case !quoted && rune(b) == delim:
			n++
		}
	}
	return n
}
