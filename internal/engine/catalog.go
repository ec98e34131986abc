package engine

import (
	"os"
	"path/filepath"
	"strings"

	"whisper-transcriber/internal/domain"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var modelCatalog = []domain.WhisperModelOption{
	{ID: "tiny.en", Name: "Tiny (English)", FileName: "ggml-tiny.en.bin", SizeLabel: "~75 MB", Description: "Fastest, English-only model."},
	{ID: "tiny", Name: "Tiny (Multilingual)", FileName: "ggml-tiny.bin", SizeLabel: "~75 MB", Description: "Fastest multilingual model."},
	{ID: "base.en", Name: "Base (English)", FileName: "ggml-base.en.bin", SizeLabel: "~142 MB", Description: "Balanced speed/quality, English-only."},
	{ID: "base", Name: "Base (Multilingual)", FileName: "ggml-base.bin", SizeLabel: "~142 MB", Description: "Balanced speed/quality, multilingual."},
	{ID: "small.en", Name: "Small (English)", FileName: "ggml-small.en.bin", SizeLabel: "~466 MB", Description: "Higher quality, English-only."},
	{ID: "small", Name: "Small (Multilingual)", FileName: "ggml-small.bin", SizeLabel: "~466 MB", Description: "Higher quality multilingual model."},
	{ID: "medium.en", Name: "Medium (English)", FileName: "ggml-medium.en.bin", SizeLabel: "~1.5 GB", Description: "High quality, English-only."},
	{ID: "medium", Name: "Medium (Multilingual)", FileName: "ggml-medium.bin", SizeLabel: "~1.5 GB", Description: "High quality multilingual model."},
	{ID: "large-v2", Name: "Large v2", FileName: "ggml-large-v2.bin", SizeLabel: "~2.9 GB", Description: "Very high quality multilingual model."},
	{ID: "large-v3", Name: "Large v3", FileName: "ggml-large-v3.bin", SizeLabel: "~2.9 GB", Description: "Latest large multilingual model."},
	{ID: "large-v3-turbo", Name: "Large v3 Turbo", FileName: "ggml-large-v3-turbo.bin", SizeLabel: "~1.6 GB", Description: "Faster large-v3 variant."},
}

// Models returns the catalog annotated with local availability in modelDir
// and the currently selected variant.
func Models(modelDir, selected string) []domain.WhisperModelOption {
	selected = NormalizeVariant(selected)
	models := make([]domain.WhisperModelOption, len(modelCatalog))
	for i, m := range modelCatalog {
		m.URL = modelBaseURL + m.FileName
		m.Selected = m.ID == selected
		if strings.TrimSpace(modelDir) != "" {
			candidate := filepath.Join(modelDir, m.FileName)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				m.Downloaded = true
				m.LocalPath = candidate
			}
		}
		models[i] = m
	}
	return models
}

// LookupModel returns the catalog entry for a variant. Unknown variants map
// to the ggml naming convention so custom models still resolve.
func LookupModel(variant string) (domain.WhisperModelOption, bool) {
	variant = NormalizeVariant(variant)
	for _, m := range modelCatalog {
		if m.ID == variant {
			m.URL = modelBaseURL + m.FileName
			return m, true
		}
	}
	return domain.WhisperModelOption{
		ID:       variant,
		Name:     variant,
		FileName: ModelFileName(variant),
	}, false
}

// ModelFileName maps a variant to its on-disk file name.
func ModelFileName(variant string) string {
	variant = NormalizeVariant(variant)
	ext := strings.ToLower(filepath.Ext(variant))
	if ext == ".bin" || ext == ".gguf" {
		return variant
	}
	return "ggml-" + variant + ".bin"
}
