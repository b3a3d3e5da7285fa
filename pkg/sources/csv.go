package sources

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/types"
)

// utf8BOM is written at the start of every snapshot so spreadsheet tools
// detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOption configures ReadCSV and WriteCSV.
type CSVOption func(*csvConfig)

type csvConfig struct {
	comma rune
}

// WithComma sets the field delimiter. Default: ','.
func WithComma(r rune) CSVOption {
	return func(c *csvConfig) { c.comma = r }
}

func newCSVConfig(opts []CSVOption) csvConfig {
	cfg := csvConfig{comma: ','}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// ReadCSV reads a delimited table whose first record is the header.
// A leading UTF-8 BOM is skipped. Columns keep their raw names.
func ReadCSV(r io.Reader, source types.SourceID, opts ...CSVOption) (*Table, error) {
	cfg := newCSVConfig(opts)

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && string(head) == string(utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.Comma = cfg.comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return NewTable(source), nil
	}
	if err != nil {
		return nil, errors.WrapParse("csv", source.String(), err)
	}

	table := NewTable(source, header...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapParse("csv", source.String(), err)
		}
		table.AppendValues(record...)
	}
	return table, nil
}

// WriteCSV writes the table with a UTF-8 BOM and a header record.
func WriteCSV(w io.Writer, t *Table, opts ...CSVOption) error {
	cfg := newCSVConfig(opts)

	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	writer.Comma = cfg.comma

	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = row[col]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SnapshotPath returns <dir>/<stage>/<name>.csv.
func SnapshotPath(dir, stage, name string) string {
	return filepath.Join(dir, stage, name+constants.SnapshotExtension)
}

// SaveSnapshot writes t to SnapshotPath(dir, stage, name), creating
// directories as needed. The file is replaced atomically.
func SaveSnapshot(dir, stage, name string, t *Table) (string, error) {
	path := SnapshotPath(dir, stage, name)
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return "", errors.WrapIO("create", filepath.Dir(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+"-*.tmp")
	if err != nil {
		return "", errors.WrapIO("create", path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := WriteCSV(tmp, t); err != nil {
		_ = tmp.Close()
		return "", errors.WrapIO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.WrapIO("close", path, err)
	}
	if err := os.Chmod(tmpName, constants.FilePermissions); err != nil {
		return "", errors.WrapIO("chmod", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", errors.WrapIO("rename", path, err)
	}
	return path, nil
}

// LoadSnapshot reads a table previously written by SaveSnapshot.
func LoadSnapshot(dir, stage string, source types.SourceID) (*Table, error) {
	path := SnapshotPath(dir, stage, source.String())
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("snapshot", path)
		}
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(f, source)
}
