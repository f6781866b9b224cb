package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/data-explorer/backend/internal/models"
	"github.com/data-explorer/backend/internal/parser"
)

// AddFile stores an upload, parses it and loads it for querying. A file that
// cannot be parsed is kept with status error and the *parser.ParseError is
// returned alongside its info. The first readable file is selected
// automatically.
func (m *Manager) AddFile(ctx context.Context, sessionID, name string, r io.Reader) (*models.FileInfo, error) {
	state, err := m.state(sessionID)
	if err != nil {
		return nil, err
	}

	stored, err := m.store.Save(name, r)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}
	info := *stored
	log := m.log.With("session", sessionID, "file", info.ID, "name", info.Name)

	start := time.Now()
	ds, loadErr := m.load(ctx, &info)
	if loadErr != nil {
		info.Status = models.FileStatusError
		info.Error = loadErr.Error()
		log.Warn("file could not be read", "error", loadErr)
	} else {
		info.Status = models.FileStatusParsed
		log.Info("file loaded", "rows", info.RowCount, "columns", info.ColumnCount, "elapsed", time.Since(start))
	}

	state.mu.Lock()
	if state.closed {
		state.mu.Unlock()
		if ds != nil {
			ds.Close()
		}
		m.store.Delete(info.ID)
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	state.Session.Files = append(state.Session.Files, &info)
	if ds != nil {
		state.tables[info.ID] = ds
		if state.Session.SelectedFileID == "" {
			state.Session.SelectedFileID = info.ID
		}
	}
	state.mu.Unlock()

	out := info
	return &out, loadErr
}

// load parses a stored file into a fresh DuckDB store and fills in the
// table statistics on info.
func (m *Manager) load(ctx context.Context, info *models.FileInfo) (*parser.DuckStore, error) {
	rc, err := m.store.Open(info.ID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	table, format, err := m.registry.Parse(info.Name, rc)
	info.Format = format
	if err != nil {
		return nil, err
	}

	ds, err := parser.NewDuckStore(m.opts.TempDir, info.ID, m.opts.Duck)
	if err != nil {
		return nil, err
	}
	if err := ds.Load(ctx, table); err != nil {
		ds.Close()
		return nil, err
	}

	info.RowCount = table.Len()
	info.ColumnCount = len(table.Columns)
	return ds, nil
}

// ListFiles returns the session's files in upload order.
func (m *Manager) ListFiles(sessionID string) ([]*models.FileInfo, error) {
	state, err := m.state(sessionID)
	if err != nil {
		return nil, err
	}
	return state.snapshot().Files, nil
}

// RemoveFile drops a file from the session. If it was selected, the next
// readable file (if any) becomes the selection.
func (m *Manager) RemoveFile(sessionID, fileID string) error {
	state, err := m.state(sessionID)
	if err != nil {
		return err
	}

	state.mu.Lock()
	idx := state.fileIndex(fileID)
	if idx < 0 {
		state.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	state.Session.Files = append(state.Session.Files[:idx], state.Session.Files[idx+1:]...)
	ds := state.tables[fileID]
	delete(state.tables, fileID)

	if state.Session.SelectedFileID == fileID {
		state.Session.SelectedFileID = ""
		for _, f := range state.Session.Files {
			if f.Queryable() {
				state.Session.SelectedFileID = f.ID
				break
			}
		}
	}
	state.mu.Unlock()

	if ds != nil {
		ds.Close()
	}
	if err := m.store.Delete(fileID); err != nil {
		m.log.Warn("deleting upload failed", "session", sessionID, "file", fileID, "error", err)
	}
	return nil
}

// SelectFile makes fileID the table questions are asked about.
func (m *Manager) SelectFile(sessionID, fileID string) (*models.FileInfo, error) {
	state, err := m.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	idx := state.fileIndex(fileID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	f := state.Session.Files[idx]
	if !f.Queryable() {
		return nil, fmt.Errorf("%w: %s", ErrFileNotQueryable, f.Name)
	}

	state.Session.SelectedFileID = fileID
	out := *f
	return &out, nil
}

// SetPreviewRows changes the session's default preview size.
func (m *Manager) SetPreviewRows(sessionID string, rows int) error {
	if rows < models.MinPreviewRows || rows > models.MaxPreviewRows {
		return ErrInvalidPreviewRows
	}
	state, err := m.state(sessionID)
	if err != nil {
		return err
	}

	state.mu.Lock()
	state.Session.PreviewRows = rows
	state.mu.Unlock()
	return nil
}

// Preview returns the first rows of the selected file. rows <= 0 uses the
// session's preview size; a table shorter than rows is returned whole.
func (m *Manager) Preview(ctx context.Context, sessionID string, rows int) (*models.Preview, error) {
	state, err := m.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	if rows <= 0 {
		rows = state.Session.PreviewRows
	}
	f, ds, err := state.selectedLocked()
	state.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if rows < models.MinPreviewRows || rows > models.MaxPreviewRows {
		return nil, ErrInvalidPreviewRows
	}

	table, err := ds.Preview(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("reading preview: %w", err)
	}

	return &models.Preview{
		FileID:    f.ID,
		FileName:  f.Name,
		Requested: rows,
		TotalRows: ds.Len(),
		Table:     table,
	}, nil
}

// selectedLocked returns the selected file and its store. Caller holds s.mu.
func (s *SessionState) selectedLocked() (*models.FileInfo, *parser.DuckStore, error) {
	id := s.Session.SelectedFileID
	if id == "" {
		return nil, nil, ErrNoFileSelected
	}
	idx := s.fileIndex(id)
	ds, ok := s.tables[id]
	if idx < 0 || !ok {
		return nil, nil, errors.Join(ErrNoFileSelected, fmt.Errorf("%w: %s", ErrFileNotFound, id))
	}
	f := *s.Session.Files[idx]
	return &f, ds, nil
}

func (s *SessionState) fileIndex(fileID string) int {
	for i, f := range s.Session.Files {
		if f.ID == fileID {
			return i
		}
	}
	return -1
}
