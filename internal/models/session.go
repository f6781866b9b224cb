package models

import "time"

// Preview row bounds, matching the preview slider.
const (
	DefaultPreviewRows = 5
	MinPreviewRows     = 1
	MaxPreviewRows     = 100
)

// ExploreSession is the client-visible state of one user's exploration session.
type ExploreSession struct {
	ID              string      `json:"id"`
	Files           []*FileInfo `json:"files"`
	SelectedFileID  string      `json:"selectedFileId,omitempty"`
	PreviewRows     int         `json:"previewRows"`
	CurrentQuestion string      `json:"currentQuestion"`
	HistoryCount    int         `json:"historyCount"`
	CreatedAt       time.Time   `json:"createdAt"`
	LastAccessed    time.Time   `json:"lastAccessed"`
}
