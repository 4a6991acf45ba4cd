package label

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Table is an immutable set of chroma prototypes and the class each one stands for.
type Table struct {
	prototypes [][ChromaSize]float64
	classes    []int
}

// Len returns the number of prototypes.
func (t *Table) Len() int { return len(t.prototypes) }

var (
	builtinOnce  sync.Once
	builtin      *Table
	defaultTable atomic.Pointer[Table]
)

// chord interval sets used to build the built-in table, in table order.
var chordShapes = [][]int{
	{0},           // single pitch class
	{0, 4, 7},     // major
	{0, 3, 7},     // minor
	{0, 4, 7, 10}, // dominant seventh
	{0, 3, 7, 10}, // minor seventh
	{0, 3, 6},     // diminished
}

// Builtin returns the table compiled into the binary: silence as class 0, then every
// chord shape on every root. Row i carries class i.
func Builtin() *Table {
	builtinOnce.Do(func() {
		t := &Table{}
		t.prototypes = append(t.prototypes, [ChromaSize]float64{})
		for _, shape := range chordShapes {
			for root := 0; root < ChromaSize; root++ {
				var row [ChromaSize]float64
				for _, interval := range shape {
					row[(root+interval)%ChromaSize] = 1
				}
				t.prototypes = append(t.prototypes, row)
			}
		}
		t.classes = make([]int, len(t.prototypes))
		for i := range t.classes {
			t.classes[i] = i
		}
		builtin = t
	})
	return builtin
}

// DefaultTable returns the process-wide table used by registered harmonic classifiers.
func DefaultTable() *Table {
	if t := defaultTable.Load(); t != nil {
		return t
	}
	return Builtin()
}

// SetDefaultTable publishes t as the process-wide table. Classifiers created earlier keep
// the table they borrowed.
func SetDefaultTable(t *Table) {
	defaultTable.Store(t)
}

// LoadTable parses a CSV table. Each record holds 12 chroma values, optionally followed by
// an integer class; without it the row index is the class.
func LoadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	t := &Table{}
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read harmonic table: %w", err)
		}
		if len(record) != ChromaSize && len(record) != ChromaSize+1 {
			return nil, fmt.Errorf("%w: harmonic table line %d has %d columns", ErrInvalidInput, line, len(record))
		}

		var row [ChromaSize]float64
		for i := 0; i < ChromaSize; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: harmonic table line %d: %v", ErrInvalidInput, line, err)
			}
			row[i] = v
		}
		class := len(t.prototypes)
		if len(record) == ChromaSize+1 {
			c, err := strconv.Atoi(strings.TrimSpace(record[ChromaSize]))
			if err != nil {
				return nil, fmt.Errorf("%w: harmonic table line %d: %v", ErrInvalidInput, line, err)
			}
			class = c
		}
		t.prototypes = append(t.prototypes, row)
		t.classes = append(t.classes, class)
	}
	if len(t.prototypes) == 0 {
		return nil, fmt.Errorf("%w: harmonic table is empty", ErrInvalidInput)
	}
	return t, nil
}

// LoadTableFile reads a CSV table from path.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open harmonic table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}
