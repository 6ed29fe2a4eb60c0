// Package wordcount counts whole-word occurrences in text files, splitting
// lines across goroutines.
package wordcount

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
)

// ErrEmptyWord is returned when the search word is empty.
var ErrEmptyWord = errors.New("word must not be empty")

// CountFile reads path and counts case-sensitive whole-word matches of word.
func CountFile(path, word string, workers int) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Count(string(data), word, workers)
}

// Count counts case-sensitive whole-word matches of word in text.
// Matches never span lines. workers <= 0 means runtime.NumCPU().
func Count(text, word string, workers int) (int, error) {
	if word == "" {
		return 0, ErrEmptyWord
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return 0, fmt.Errorf("failed to compile pattern for %q: %w", word, err)
	}

	lines := strings.Split(text, "\n")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(lines) {
		workers = len(lines)
	}

	chunk := (len(lines) + workers - 1) / workers
	counts := make([]int, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= len(lines) {
			break
		}
		end := min(start+chunk, len(lines))

		wg.Add(1)
		go func(w int, part []string) {
			defer wg.Done()
			for _, line := range part {
				counts[w] += len(re.FindAllStringIndex(line, -1))
			}
		}(w, lines[start:end])
	}
	wg.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}
