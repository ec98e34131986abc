package domain

// WhisperModelOption describes one whisper model variant and its local state.
type WhisperModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FileName    string `json:"fileName"`
	URL         string `json:"url"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
	Downloaded  bool   `json:"downloaded"`
	Selected    bool   `json:"selected"`
	LocalPath   string `json:"localPath,omitempty"`
}
