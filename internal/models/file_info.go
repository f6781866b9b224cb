package models

import "time"

// FileFormat identifies a supported tabular file format.
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatXLS  FileFormat = "xls"
	FormatXLSX FileFormat = "xlsx"
)

// FileStatus tracks where an uploaded file is in the intake pipeline.
type FileStatus string

const (
	FileStatusUploaded FileStatus = "uploaded"
	FileStatusParsed   FileStatus = "parsed"
	FileStatusError    FileStatus = "error"
)

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	Format      FileFormat `json:"format,omitempty"`
	UploadedAt  time.Time  `json:"uploadedAt"`
	Status      FileStatus `json:"status"`
	Error       string     `json:"error,omitempty"` // user-visible parse failure
	RowCount    int        `json:"rowCount,omitempty"`
	ColumnCount int        `json:"columnCount,omitempty"`
}

// Queryable reports whether the file parsed successfully and can be selected.
func (f *FileInfo) Queryable() bool {
	return f.Status == FileStatusParsed
}
