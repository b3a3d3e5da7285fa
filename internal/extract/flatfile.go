package extract

import (
	"context"
	"os"
	"strconv"

	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/logging"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// flatFileActivity is the column added to every flat-file row; the export
// lists activities only.
const flatFileActivity = "est_activite"

// FlatFile extracts activities from a ';'-delimited export.
type FlatFile struct {
	path string
}

// NewFlatFile creates the flat-file extractor for path.
func NewFlatFile(path string) *FlatFile {
	return &FlatFile{path: path}
}

// Source implements Extractor.
func (f *FlatFile) Source() types.SourceID { return types.FlatFile }

// Extract implements Extractor.
func (f *FlatFile) Extract(ctx context.Context) (*sources.Table, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, errors.WrapIO("open", f.path, err)
	}
	defer func() { _ = file.Close() }()

	table, err := sources.ReadCSV(file, types.FlatFile, sources.WithComma(';'))
	if err != nil {
		return nil, err
	}

	if !table.HasColumn(flatFileActivity) {
		table.Columns = append(table.Columns, flatFileActivity)
	}
	for _, row := range table.Rows {
		row[flatFileActivity] = strconv.FormatBool(true)
	}

	logging.FromContext(ctx).Debug().
		Str("path", f.path).
		Int("rows", table.Len()).
		Msg("Flat file read")
	return table, nil
}
