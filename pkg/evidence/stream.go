package evidence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/suppkb/pkg/logger"
)

// maxLineSize bounds one JSON-lines record. Abstract sentences are short,
// but entity-heavy lines with many spans can get large.
const maxLineSize = 16 * 1024 * 1024

// RawEntity is one entity mention of a raw labeled record, as produced by the
// upstream NER/linking stage.
type RawEntity struct {
	ID      string   `json:"id"`
	Span    [][2]int `json:"span"`
	Surface string   `json:"string"`
}

// FirstSpan returns the primary character span of the mention.
func (e RawEntity) FirstSpan() [2]int {
	if len(e.Span) == 0 {
		return [2]int{}
	}
	return e.Span[0]
}

// SurfaceIn extracts the mention text from the owning sentence. It falls back
// to the surface string carried on the record when the span is out of range.
func (e RawEntity) SurfaceIn(sentence string) string {
	span := e.FirstSpan()
	if span[0] < 0 || span[1] > len(sentence) || span[0] >= span[1] {
		return e.Surface
	}
	return sentence[span[0]:span[1]]
}

// Label is a classifier label that upstream stages serialize either as a JSON
// number or as a string.
type Label int

func (l *Label) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	if text == "" || text == "null" {
		*l = 0
		return nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid label %q: %w", text, err)
	}
	*l = Label(int(value))
	return nil
}

// RawRecord is one line of the labeled evidence stream.
type RawRecord struct {
	ID         string    `json:"id"`
	SentenceID int       `json:"sentence_id"`
	Sentence   string    `json:"sentence"`
	Arg1       RawEntity `json:"arg1"`
	Arg2       RawEntity `json:"arg2"`
	Label      *Label    `json:"label,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// PaperID strips the trailing local index from the record id.
func (r RawRecord) PaperID() string {
	if idx := strings.LastIndex(r.ID, "-"); idx != -1 {
		return r.ID[:idx]
	}
	return r.ID
}

// RawLabel is one line of a companion label stream, joined to records by id.
type RawLabel struct {
	ID    string `json:"id"`
	Label Label  `json:"label-model"`
}

// Partition is one independently processable slice of the evidence stream:
// a sentences file and, optionally, a companion label file. When LabelsPath
// is empty, labels are expected inline on each record.
type Partition struct {
	SentencesPath string
	LabelsPath    string
}

// ReadPositiveLabels reads a label stream and returns the ids labeled positive.
func ReadPositiveLabels(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer file.Close()

	positives := make(map[string]struct{})
	err = scanLines(file, func(line []byte) error {
		var label RawLabel
		if err := json.Unmarshal(line, &label); err != nil {
			return fmt.Errorf("failed to parse label line: %w", err)
		}
		if label.Label == 1 {
			positives[label.ID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return positives, nil
}

// ReadRecords streams raw records from a JSON-lines file.
func ReadRecords(path string, fn func(RawRecord) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open sentence file: %w", err)
	}
	defer file.Close()

	return scanLines(file, func(line []byte) error {
		var record RawRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("failed to parse sentence line: %w", err)
		}
		return fn(record)
	})
}

func scanLines(r io.Reader, fn func(line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn([]byte(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// FilterPartition filters one partition of the evidence stream. Records with a
// companion label stream are admitted when their id is labeled positive;
// otherwise the inline label decides.
func FilterPartition(partition Partition, filter *Filter) error {
	var positives map[string]struct{}
	if partition.LabelsPath != "" {
		var err error
		positives, err = ReadPositiveLabels(partition.LabelsPath)
		if err != nil {
			return err
		}
		logger.Debug("[Filter] Loaded labels", "file", partition.LabelsPath, "positives", len(positives))
	}

	return ReadRecords(partition.SentencesPath, func(record RawRecord) error {
		if positives != nil {
			if _, ok := positives[record.ID]; !ok {
				return nil
			}
		} else if record.Label == nil || *record.Label != 1 {
			return nil
		}
		filter.Add(record)
		return nil
	})
}
