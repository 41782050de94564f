// Package classify labels fetched sitemap documents by inspecting their
// content. The root element decides the kind; URL naming is never trusted.
package classify

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/p4blo4p/sitemap-hunter/internal/hunter"
)

// Result is the outcome of classifying one document.
type Result struct {
	Kind hunter.Kind
	// Children holds nested sitemap URLs when Kind is index.
	Children []string
	// Leaves counts page URLs when Kind is urlset.
	Leaves int
	// Partial is set when parsing failed mid-document but a valid prefix
	// was salvaged. ValidBytes is the confirmed-complete byte offset; the
	// searcher must not advance a cursor past it.
	Partial    bool
	ValidBytes int64
}

// Classify parses data as a sitemap document. A document whose root is
// sitemapindex yields index, urlset yields urlset, anything else (including
// a parse failure before any structure was seen) yields invalid. A parse
// failure after valid entries were decoded yields the prefix results with
// Partial set, truncated at the first error.
func Classify(data []byte) Result {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Tolerate encoding declarations other than UTF-8. Once a charset
	// conversion kicks in, decoder offsets index the converted stream, not
	// the stored bytes, so they can no longer bound a search cursor.
	converted := false
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		r, err := charset.NewReaderLabel(label, input)
		if err == nil {
			converted = true
		}
		return r, err
	}
	salvage := func(offset int64) int64 {
		if converted {
			return 0
		}
		return offset
	}

	res := Result{Kind: hunter.KindInvalid, ValidBytes: int64(len(data))}
	var (
		root     string
		seen     = make(map[string]struct{})
		lastGood int64
	)

	for {
		lastGood = dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if root == "" {
				// Nothing recognizable before the failure.
				return Result{Kind: hunter.KindInvalid, ValidBytes: 0}
			}
			// Trailing garbage or truncation: keep the valid prefix.
			res.Partial = true
			res.ValidBytes = salvage(lastGood)
			return res
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch {
		case root == "":
			root = se.Name.Local
			switch root {
			case "sitemapindex":
				res.Kind = hunter.KindIndex
			case "urlset":
				res.Kind = hunter.KindURLSet
			default:
				return Result{Kind: hunter.KindInvalid, ValidBytes: 0}
			}
		case res.Kind == hunter.KindIndex && se.Name.Local == "sitemap":
			var entry locEntry
			if derr := dec.DecodeElement(&entry, &se); derr != nil {
				res.Partial = true
				res.ValidBytes = salvage(lastGood)
				return res
			}
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				if _, dup := seen[loc]; !dup {
					seen[loc] = struct{}{}
					res.Children = append(res.Children, loc)
				}
			}
		case res.Kind == hunter.KindURLSet && se.Name.Local == "url":
			var entry locEntry
			if derr := dec.DecodeElement(&entry, &se); derr != nil {
				res.Partial = true
				res.ValidBytes = salvage(lastGood)
				return res
			}
			if strings.TrimSpace(entry.Loc) != "" {
				res.Leaves++
			}
		}
	}

	if root == "" {
		return Result{Kind: hunter.KindInvalid, ValidBytes: 0}
	}
	return res
}

type locEntry struct {
	Loc string `xml:"loc"`
}
