package highlight

import "github.com/hazyhaar/webnote/highlight/internal/store"

// Re-exported types from internal/store for use by cmd/ and other packages.
type (
	Record     = store.Highlight
	PageRecord = store.Page
	PageInfo   = store.PageInfo
	Settings   = store.Settings
	RestoreRun = store.RestoreRun
)
