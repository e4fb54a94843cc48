package runstore

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/racingline/internal/monitoring"
)

// Result is the human-readable summary stored beside a run.
type Result struct {
	Model      string
	Checkpoint int
	Score      float64
}

// String renders the summary in the result.txt format.
func (r Result) String() string {
	return fmt.Sprintf("Run results\n==============\nmodel: %s epoch: %d\nResult:%s",
		r.Model, r.Checkpoint, strconv.FormatFloat(r.Score, 'g', -1, 64))
}

// WriteResult writes the summary of an evaluation made at time at and
// returns its path. The first evaluation goes to <dir>/result.txt; later
// ones go to result-<unix>.txt beside it, so no earlier score is lost.
// Missing model or checkpoint is written as-is with a warning so it can be
// filled in by hand.
func (l *Layout) WriteResult(dir string, r Result, at time.Time) (string, error) {
	path := filepath.Join(dir, ResultFile)
	if l.fs.Exists(path) {
		base := filepath.Join(dir, fmt.Sprintf("result-%d", at.Unix()))
		path = base + ".txt"
		for n := 1; l.fs.Exists(path); n++ {
			path = fmt.Sprintf("%s-%d.txt", base, n)
		}
	}
	if r.Model == "" || r.Checkpoint == 0 {
		monitoring.Logf("[RunStore] not all information about run %s has been provided, edit %s by hand", dir, path)
	}
	if err := l.fs.WriteFile(path, []byte(r.String()), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

var (
	modelLine  = regexp.MustCompile(`^model:\s*(.*?)\s+epoch:\s*(-?\d+)\s*$`)
	resultLine = regexp.MustCompile(`^Result:\s*(\S+)\s*$`)
)

// ReadResult parses <dir>/result.txt, the run's first evaluation.
func (l *Layout) ReadResult(dir string) (Result, error) {
	path := filepath.Join(dir, ResultFile)
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseResult(data)
}

// ParseResult decodes the result.txt format.
func ParseResult(data []byte) (Result, error) {
	var r Result
	var haveModel, haveScore bool
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if m := modelLine.FindStringSubmatch(line); m != nil {
			r.Model = m[1]
			r.Checkpoint, _ = strconv.Atoi(m[2])
			haveModel = true
			continue
		}
		if m := resultLine.FindStringSubmatch(line); m != nil {
			score, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return Result{}, fmt.Errorf("invalid score %q: %w", m[1], err)
			}
			r.Score = score
			haveScore = true
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	if !haveModel || !haveScore {
		return Result{}, fmt.Errorf("result summary is missing the model or score line")
	}
	return r, nil
}
