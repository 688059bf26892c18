package api

// insertBlockRequest is the body of POST .../insert_block (spec §6).
type insertBlockRequest struct {
	Type     string         `json:"type" binding:"required"`
	Title    string         `json:"title" binding:"required"`
	Props    map[string]any `json:"props"`
	ParentID *string        `json:"parent_id,omitempty"`
}

// toolRenameRequest is the body of POST .../tool/rename (spec §6).
type toolRenameRequest struct {
	Rename []toolRenamePair `json:"rename" binding:"required"`
}

type toolRenamePair struct {
	OldName string `json:"old_name" binding:"required"`
	NewName string `json:"new_name" binding:"required"`
}
