package frames

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/reusee/scisandbox/pvalues"
	"go.starlark.net/starlark"
)

// EnvelopeFormat tags pickled frames written by this library.
const EnvelopeFormat = "scisandbox-frame/1"

type CellKind uint8

const (
	CellNone CellKind = iota
	CellInt
	CellFloat
	CellString
	CellBool
	CellPValue
	// CellOther keeps the text and type name of values with no cell kind of their own.
	CellOther
)

type Cell struct {
	Kind   CellKind
	Int    int64
	Float  float64
	String string
	Bool   bool
	PValue pvalues.PValue
	Type   string
}

// Envelope is the serialized form of a frame. Provenance and p-values travel with the cells.
type Envelope struct {
	Format    string
	Columns   []string
	Data      [][]Cell
	Index     []Cell
	IndexName string
	CreatedBy string
	FilePath  string
}

func toCell(v starlark.Value) Cell {
	switch v := v.(type) {
	case nil, starlark.NoneType:
		return Cell{Kind: CellNone}
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return Cell{Kind: CellInt, Int: i}
		}
		f, _ := starlark.AsFloat(v)
		return Cell{Kind: CellFloat, Float: f}
	case starlark.Float:
		return Cell{Kind: CellFloat, Float: float64(v)}
	case starlark.String:
		return Cell{Kind: CellString, String: string(v)}
	case starlark.Bool:
		return Cell{Kind: CellBool, Bool: bool(v)}
	case pvalues.PValue:
		return Cell{Kind: CellPValue, PValue: v}
	}
	return Cell{Kind: CellOther, String: v.String(), Type: v.Type()}
}

func (c Cell) Value(display *pvalues.Display) starlark.Value {
	switch c.Kind {
	case CellInt:
		return starlark.MakeInt64(c.Int)
	case CellFloat:
		return starlark.Float(c.Float)
	case CellString, CellOther:
		return starlark.String(c.String)
	case CellBool:
		return starlark.Bool(c.Bool)
	case CellPValue:
		return c.PValue.WithDisplay(display)
	}
	return starlark.None
}

func NewEnvelope(f *Frame) *Envelope {
	env := &Envelope{
		Format:    EnvelopeFormat,
		Columns:   f.Columns(),
		IndexName: f.indexName,
		CreatedBy: f.CreatedBy,
		FilePath:  f.FilePath,
	}
	for _, label := range f.index {
		env.Index = append(env.Index, toCell(label))
	}
	for _, c := range f.columns {
		cells := make([]Cell, 0, len(f.index))
		for _, v := range f.data[c] {
			cells = append(cells, toCell(v))
		}
		env.Data = append(env.Data, cells)
	}
	return env
}

func EncodeEnvelope(f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(NewEnvelope(f)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeEnvelope(content []byte) (*Envelope, error) {
	var env Envelope
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if env.Format != EnvelopeFormat {
		return nil, fmt.Errorf("decode frame: unknown format %q", env.Format)
	}
	return &env, nil
}

// Frame rebuilds the frame without running the constructor slot.
func (l *Library) FrameFromEnvelope(thread *starlark.Thread, env *Envelope) (*Frame, error) {
	display := pvalues.FromThread(thread)
	f := l.alloc(thread)
	f.CreatedBy = env.CreatedBy
	f.FilePath = env.FilePath
	f.indexName = env.IndexName
	for _, cell := range env.Index {
		f.index = append(f.index, cell.Value(display))
	}
	if len(env.Data) != len(env.Columns) {
		return nil, fmt.Errorf("decode frame: %d columns but %d data columns", len(env.Columns), len(env.Data))
	}
	for i, c := range env.Columns {
		if len(env.Data[i]) != len(f.index) {
			return nil, fmt.Errorf("decode frame: column %q has %d values, want %d", c, len(env.Data[i]), len(f.index))
		}
		values := make([]starlark.Value, 0, len(env.Data[i]))
		for _, cell := range env.Data[i] {
			values = append(values, cell.Value(display))
		}
		f.columns = append(f.columns, c)
		f.data[c] = values
	}
	return f, nil
}
