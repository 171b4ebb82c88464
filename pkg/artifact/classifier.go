package artifact

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Tag sets. Membership decides a block's type outright; only tags outside
// every set fall through to content sniffing.
var (
	tableTags = map[string]struct{}{
		"table": {}, "csv": {}, "tsv": {},
	}
	chartTags = map[string]struct{}{
		"chart": {}, "bar": {}, "line": {}, "pie": {}, "scatter": {},
		"area": {}, "doughnut": {}, "radar": {},
	}
	diagramTags = map[string]struct{}{
		"mermaid": {}, "diagram": {}, "flowchart": {}, "plantuml": {},
		"dot": {}, "graphviz": {},
	}
	webTags = map[string]struct{}{
		"html": {}, "htm": {},
	}
	programmingTags = map[string]struct{}{
		"python": {}, "javascript": {}, "typescript": {}, "go": {},
		"golang": {}, "rust": {}, "java": {}, "c": {}, "cpp": {},
		"c++": {}, "csharp": {}, "ruby": {}, "php": {}, "swift": {},
		"kotlin": {}, "scala": {}, "sql": {}, "bash": {}, "sh": {},
		"shell": {}, "zsh": {}, "r": {}, "perl": {}, "haskell": {},
		"lua": {}, "css": {}, "jsx": {}, "tsx": {},
	}
)

var chartSubtypes = []string{"bar", "line", "pie", "scatter", "area", "doughnut", "radar"}

// codeTokens matches indicator keywords common across mainstream languages.
var codeTokens = regexp.MustCompile(`(?m)\b(import|def|function|class|func|package|const|let|var|return|SELECT|INSERT|UPDATE|DELETE|CREATE TABLE|#include|public|private|println|printf|print)\b`)

type intentPattern struct {
	re  *regexp.Regexp
	typ string
}

// intentPatterns match prose phrases asking for an artifact the model did
// not actually emit. Order fixes placeholder precedence.
var intentPatterns = []intentPattern{
	{regexp.MustCompile(`(?i)\b(?:create|generate|make|draw|plot|show|display|build|render)\b[^.!?\n]{0,60}\b(?:chart|graph|plot)\b`), TypeChart},
	{regexp.MustCompile(`(?i)\b(?:create|generate|make|show|display|build|render)\b[^.!?\n]{0,60}\btable\b`), TypeTable},
	{regexp.MustCompile(`(?i)\b(?:create|generate|make|draw|show|display|build|render)\b[^.!?\n]{0,60}\b(?:diagram|flowchart)\b`), TypeDiagram},
	{regexp.MustCompile(`(?i)\b(?:create|generate|make|build|render)\b[^.!?\n]{0,60}\b(?:web\s*page|html\s*page|website)\b`), TypeHTML},
}

var placeholderContent = map[string]string{
	TypeChart:   `{"chartType":"bar","title":"","data":[]}`,
	TypeTable:   `{"columns":[],"rows":[]}`,
	TypeDiagram: "graph TD\n",
	TypeHTML:    "<!DOCTYPE html>\n<html>\n<body>\n</body>\n</html>\n",
}

// fencedBlock is one triple-backtick region with its declared tag.
type fencedBlock struct {
	tag     string
	content string
}

// Classify derives the artifacts present in a turn's assembled text. Fenced
// blocks are classified first; the remaining prose is then scanned for
// intent phrases, which produce at most one placeholder per type and only
// for types no real artifact already covers.
func Classify(turnID, text string) []Artifact {
	blocks, prose := extractBlocks(text)

	var artifacts []Artifact
	seen := make(map[string]bool)

	for i, block := range blocks {
		a, ok := classifyBlock(turnID, block, i)
		if !ok {
			continue
		}
		artifacts = append(artifacts, a)
		seen[a.Type] = true
	}

	for _, pattern := range intentPatterns {
		if seen[pattern.typ] {
			continue
		}
		if !pattern.re.MatchString(prose) {
			continue
		}
		idx := len(artifacts)
		a := Artifact{
			ID:       artifactID(turnID, pattern.typ, "", idx),
			Type:     pattern.typ,
			Title:    placeholderTitle(pattern.typ),
			Content:  placeholderContent[pattern.typ],
			Filename: filenameFor(pattern.typ, "", idx),
		}
		if pattern.typ == TypeHTML {
			a.Tabs = []string{"preview", "source"}
		}
		artifacts = append(artifacts, a)
		seen[pattern.typ] = true
	}

	return artifacts
}

func classifyBlock(turnID string, block fencedBlock, index int) (Artifact, bool) {
	tag := strings.ToLower(strings.TrimSpace(block.tag))
	if tag == "text" {
		return Artifact{}, false
	}

	var artifactType string
	switch {
	case member(tableTags, tag):
		artifactType = TypeTable
	case member(chartTags, tag):
		artifactType = TypeChart
	case member(diagramTags, tag):
		artifactType = TypeDiagram
	case member(webTags, tag):
		artifactType = TypeHTML
	case member(programmingTags, tag):
		artifactType = TypeCode
	default:
		artifactType = sniffContent(block.content)
	}

	language := tag
	if artifactType != TypeCode {
		language = ""
	}

	a := Artifact{
		ID:       artifactID(turnID, artifactType, language, index),
		Type:     artifactType,
		Language: language,
		Title:    titleFor(artifactType, tag, block.content, index),
		Content:  block.content,
		Filename: filenameFor(artifactType, language, index),
	}
	if artifactType == TypeHTML {
		a.Tabs = []string{"preview", "source"}
	}
	return a, true
}

// sniffContent classifies a block whose tag decided nothing, typically json
// or an unrecognized tag. Invalid JSON never fails the classification; it
// just falls through to token matching.
func sniffContent(content string) string {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed != nil {
		if isChartShaped(parsed) {
			return TypeChart
		}
		if isTableShaped(parsed) {
			return TypeTable
		}
		if codeTokens.MatchString(content) {
			return TypeCode
		}
		return TypeData
	}

	// Valid JSON arrays and scalars still count as data.
	var anything any
	if err := json.Unmarshal([]byte(content), &anything); err == nil && anything != nil {
		if codeTokens.MatchString(content) {
			return TypeCode
		}
		return TypeData
	}

	return TypeCode
}

func isChartShaped(parsed map[string]any) bool {
	if _, ok := parsed["chartType"]; ok {
		return true
	}
	if _, ok := parsed["series"]; ok {
		return true
	}
	if _, ok := parsed["datasets"]; ok {
		return true
	}

	// A data array of points with numeric value fields alongside an
	// explicit title also reads as a chart.
	data, ok := parsed["data"].([]any)
	if !ok || len(data) == 0 {
		return false
	}
	_, hasTitle := parsed["title"]
	if !hasTitle {
		return false
	}
	first, ok := data[0].(map[string]any)
	if !ok {
		return false
	}
	for key, value := range first {
		if key == "label" || key == "name" {
			continue
		}
		if _, numeric := value.(float64); numeric {
			return true
		}
	}
	return false
}

func isTableShaped(parsed map[string]any) bool {
	if t, ok := parsed["type"].(string); ok && t == "table" {
		return true
	}
	if _, ok := parsed["columns"]; ok {
		return true
	}
	if rows, ok := parsed["rows"].([]any); ok && uniformKeys(rows) {
		return true
	}
	if data, ok := parsed["data"].([]any); ok && uniformKeys(data) {
		return true
	}
	return false
}

// uniformKeys reports whether every element is an object with the same key
// set as the first, which is the shape of tabular row data.
func uniformKeys(rows []any) bool {
	if len(rows) == 0 {
		return false
	}
	first, ok := rows[0].(map[string]any)
	if !ok {
		return false
	}
	for _, row := range rows[1:] {
		m, ok := row.(map[string]any)
		if !ok || len(m) != len(first) {
			return false
		}
		for key := range first {
			if _, present := m[key]; !present {
				return false
			}
		}
	}
	return true
}

var titles = map[string]string{
	TypeChart + "/bar":      "Bar Chart",
	TypeChart + "/line":     "Line Chart",
	TypeChart + "/pie":      "Pie Chart",
	TypeChart + "/scatter":  "Scatter Chart",
	TypeChart + "/area":     "Area Chart",
	TypeChart + "/doughnut": "Doughnut Chart",
	TypeChart + "/radar":    "Radar Chart",
	TypeTable + "/table":    "Table",
	TypeTable + "/csv":      "CSV Table",
	TypeTable + "/tsv":      "TSV Table",
	TypeDiagram + "/mermaid":   "Mermaid Diagram",
	TypeDiagram + "/plantuml":  "PlantUML Diagram",
	TypeDiagram + "/dot":       "Graphviz Diagram",
	TypeDiagram + "/graphviz":  "Graphviz Diagram",
	TypeDiagram + "/flowchart": "Flowchart",
	TypeDiagram + "/diagram":   "Diagram",
	TypeHTML + "/html": "HTML Page",
	TypeHTML + "/htm":  "HTML Page",
}

func titleFor(artifactType, tag, content string, index int) string {
	if title, ok := titles[artifactType+"/"+tag]; ok {
		return title
	}

	switch artifactType {
	case TypeChart:
		if sub := chartSubtype(content); sub != "" {
			if title, ok := titles[TypeChart+"/"+sub]; ok {
				return title
			}
		}
		return fmt.Sprintf("Chart %d", index+1)
	case TypeTable:
		return "Table"
	case TypeDiagram:
		return "Diagram"
	case TypeHTML:
		return "HTML Page"
	case TypeData:
		return "JSON Data"
	default:
		if tag != "" {
			return strings.ToUpper(tag[:1]) + tag[1:] + " Code"
		}
		return "Code"
	}
}

// chartSubtype recovers a specific chart kind, preferring the parsed JSON's
// own type fields over raw text matching.
func chartSubtype(content string) string {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		for _, key := range []string{"chartType", "type"} {
			if value, ok := parsed[key].(string); ok {
				value = strings.ToLower(value)
				for _, sub := range chartSubtypes {
					if value == sub {
						return sub
					}
				}
			}
		}
	}

	lower := strings.ToLower(content)
	for _, sub := range chartSubtypes {
		if strings.Contains(lower, sub) {
			return sub
		}
	}
	return ""
}

func placeholderTitle(artifactType string) string {
	switch artifactType {
	case TypeChart:
		return "Chart"
	case TypeTable:
		return "Table"
	case TypeDiagram:
		return "Diagram"
	case TypeHTML:
		return "HTML Page"
	default:
		return "Artifact"
	}
}

// extractBlocks splits text into its fenced blocks and the surrounding
// prose. An unclosed fence swallows the rest of the text as its content.
func extractBlocks(text string) ([]fencedBlock, string) {
	var blocks []fencedBlock
	var prose strings.Builder

	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "```") {
			prose.WriteString(line)
			prose.WriteString("\n")
			i++
			continue
		}

		tag := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
		var body []string
		i++
		for i < len(lines) {
			if strings.TrimSpace(lines[i]) == "```" {
				i++
				break
			}
			body = append(body, lines[i])
			i++
		}
		blocks = append(blocks, fencedBlock{
			tag:     tag,
			content: strings.Join(body, "\n"),
		})
	}

	return blocks, prose.String()
}

func member(set map[string]struct{}, tag string) bool {
	_, ok := set[tag]
	return ok
}
