// Package artifact derives typed, renderable artifacts from the text of a
// completed turn. Classification is deterministic: the same input and turn
// id always produce the same artifacts.
package artifact

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Artifact types.
const (
	TypeCode    = "code"
	TypeChart   = "chart"
	TypeTable   = "table"
	TypeDiagram = "diagram"
	TypeData    = "data"
	TypeHTML    = "html"
)

// Artifact is a typed unit of structured output extracted from turn text.
// Artifacts are derived values and never mutated after creation.
type Artifact struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Language string   `json:"language,omitempty"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Filename string   `json:"filename,omitempty"`
	Tabs     []string `json:"tabs,omitempty"`
}

// artifactID derives a stable identifier from the turn id, type, language
// and block position. Without a turn id there is nothing stable to hash
// against, so a random suffix keeps ids unique across calls.
func artifactID(turnID, artifactType, language string, blockIndex int) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", turnID, artifactType, language, blockIndex)
	id := hex.EncodeToString(h.Sum(nil))[:16]
	if turnID == "" {
		return id + "-" + uuid.NewString()[:8]
	}
	return id
}

var extensions = map[string]string{
	"python":     "py",
	"javascript": "js",
	"typescript": "ts",
	"go":         "go",
	"rust":       "rs",
	"java":       "java",
	"c":          "c",
	"cpp":        "cpp",
	"csharp":     "cs",
	"ruby":       "rb",
	"php":        "php",
	"swift":      "swift",
	"kotlin":     "kt",
	"sql":        "sql",
	"bash":       "sh",
	"sh":         "sh",
	"html":       "html",
	"css":        "css",
	"json":       "json",
	"yaml":       "yaml",
	"xml":        "xml",
}

// filenameFor picks a download filename for an artifact.
func filenameFor(artifactType, language string, index int) string {
	switch artifactType {
	case TypeHTML:
		return fmt.Sprintf("artifact-%d.html", index)
	case TypeChart, TypeTable, TypeData:
		return fmt.Sprintf("artifact-%d.json", index)
	case TypeDiagram:
		return fmt.Sprintf("artifact-%d.mmd", index)
	default:
		ext := extensions[language]
		if ext == "" {
			ext = "txt"
		}
		return fmt.Sprintf("artifact-%d.%s", index, ext)
	}
}
