// Package format renders command results as json, edn, or a colored table.
package format

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
)

const (
	JSON  = "json"
	EDN   = "edn"
	Table = "table"
)

// Formats lists the accepted --format values.
var Formats = []string{JSON, EDN, Table}

// Tabular is implemented by results that have a table rendering.
type Tabular interface {
	TableHeader() []string
	TableRows() [][]string
}

// Write writes v in the requested format. Table output needs v to be Tabular;
// anything else falls back to JSON.
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", JSON:
		return WriteJSON(w, v, pretty)
	case EDN:
		return WriteEDN(w, v, pretty)
	case Table:
		if t, ok := v.(Tabular); ok {
			return WriteTable(w, t, TableOptions{})
		}
		return WriteJSON(w, v, pretty)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON, one document per line unless pretty.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}
