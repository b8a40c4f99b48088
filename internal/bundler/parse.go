package bundler

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// Block is one build/endbuild region of a page.
type Block struct {
	Type     string
	Output   string
	AltPaths []string
	Refs     []string

	// Start and End delimit the whole region, markers included.
	Start int
	End   int
	Line  int
}

var markerPattern = regexp.MustCompile(`<!--\s*(build|endbuild)\b(?::([A-Za-z0-9_-]*)(?:\(([^)]*)\))?)?\s*(\S*)\s*-->`)

// Tag renders the single reference that replaces the block.
func (b Block) Tag() string {
	if b.Type == "css" {
		return fmt.Sprintf(`<link rel="stylesheet" href="%s">`, html.EscapeString(b.Output))
	}
	return fmt.Sprintf(`<script src="%s"></script>`, html.EscapeString(b.Output))
}

// Parse finds the build blocks of doc in order. name is used in errors.
func Parse(name string, doc []byte) ([]Block, error) {
	var (
		blocks []Block
		open   *Block
	)

	for _, m := range markerPattern.FindAllSubmatchIndex(doc, -1) {
		kind := string(doc[m[2]:m[3]])
		line := bytes.Count(doc[:m[0]], []byte("\n")) + 1

		if kind == "endbuild" {
			if open == nil {
				return nil, markerError(name, line, "endbuild without matching build")
			}
			open.End = m[1]
			open.Refs = extractRefs(doc[open.Start:m[0]], open.Type)
			blocks = append(blocks, *open)
			open = nil
			continue
		}

		if open != nil {
			return nil, markerError(name, line, fmt.Sprintf("nested build block inside block opened on line %d", open.Line))
		}

		var typ string
		if m[4] >= 0 {
			typ = string(doc[m[4]:m[5]])
		}
		if typ != "css" && typ != "js" {
			return nil, markerError(name, line, fmt.Sprintf("unknown build type %q (supported: css, js)", typ))
		}

		output := string(doc[m[8]:m[9]])
		if output == "" {
			return nil, markerError(name, line, "build block has no output path")
		}

		var alts []string
		if m[6] >= 0 {
			for _, p := range strings.Split(string(doc[m[6]:m[7]]), ",") {
				if p = strings.TrimSpace(p); p != "" {
					alts = append(alts, p)
				}
			}
		}

		open = &Block{
			Type:     typ,
			Output:   output,
			AltPaths: alts,
			Start:    m[0],
			Line:     line,
		}
	}

	if open != nil {
		return nil, markerError(name, open.Line, "build block without endbuild")
	}
	return blocks, nil
}

// extractRefs returns the href of each link and the src of each script in
// fragment, in document order.
func extractRefs(fragment []byte, typ string) []string {
	var refs []string
	z := html.NewTokenizer(bytes.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return refs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		tok := z.Token()
		var attr string
		switch {
		case tok.Data == "link" && typ == "css":
			attr = "href"
		case tok.Data == "script" && typ == "js":
			attr = "src"
		default:
			continue
		}
		for _, a := range tok.Attr {
			if a.Key == attr && a.Val != "" {
				refs = append(refs, a.Val)
			}
		}
	}
}

func markerError(name string, line int, msg string) error {
	return errors.NewConfigError(errors.ErrCodeMalformedMarker, msg).WithLocation(name, line, 0)
}
