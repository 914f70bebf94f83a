// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package feed decodes the Atom documents and key listings returned by the
// reference API into plain Go values and cached entities.
package feed

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MKhiriev/go-ref-sync/models"
)

const (
	NamespaceAtom = "http://www.w3.org/2005/Atom"
	NamespaceAPI  = "http://zotero.org/ns/api"
)

const (
	RelNext      = "next"
	RelSelf      = "self"
	RelUp        = "up"
	RelEnclosure = "enclosure"
)

var (
	ErrEmptyDocument  = errors.New("empty document")
	ErrUnexpectedRoot = errors.New("unexpected root element")
	ErrInvalidKey     = errors.New("invalid key in key list")
	ErrNoEntryKey     = errors.New("entry has no key")
	ErrNoEntryTag     = errors.New("entry has no entity tag")
)

// Link is an Atom link element.
type Link struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// Content is the entry payload; the API puts the entity tag on it.
type Content struct {
	Type string `xml:"type,attr"`
	ETag string `xml:"http://zotero.org/ns/api etag,attr"`
	Body string `xml:",chardata"`
}

// Entry is one Atom entry describing an item, attachment or collection.
type Entry struct {
	ID             string  `xml:"id"`
	Title          string  `xml:"title"`
	Updated        string  `xml:"updated"`
	Key            string  `xml:"http://zotero.org/ns/api key"`
	ItemType       string  `xml:"http://zotero.org/ns/api itemType"`
	NumChildrenRaw string  `xml:"http://zotero.org/ns/api numChildren"`
	Year           string  `xml:"http://zotero.org/ns/api year"`
	CreatorSummary string  `xml:"http://zotero.org/ns/api creatorSummary"`
	Links          []Link  `xml:"link"`
	Content        Content `xml:"content"`
}

// Feed is an Atom feed page.
type Feed struct {
	Title   string  `xml:"title"`
	Updated string  `xml:"updated"`
	Links   []Link  `xml:"link"`
	Entries []Entry `xml:"entry"`
}

// Parse decodes a feed or a bare entry. A bare entry is returned as a
// single-entry feed.
func Parse(r io.Reader) (*Feed, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		if err != nil {
			return nil, fmt.Errorf("read xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "feed":
			var f Feed
			if err = dec.DecodeElement(&f, &start); err != nil {
				return nil, fmt.Errorf("decode feed: %w", err)
			}
			return &f, nil
		case "entry":
			var e Entry
			if err = dec.DecodeElement(&e, &start); err != nil {
				return nil, fmt.Errorf("decode entry: %w", err)
			}
			return &Feed{Entries: []Entry{e}}, nil
		default:
			return nil, fmt.Errorf("%w: <%s>", ErrUnexpectedRoot, start.Name.Local)
		}
	}
}

// ParseKeys reads a newline separated key listing, dropping blanks and duplicates.
func ParseKeys(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})
	keys := make([]string, 0)

	for scanner.Scan() {
		key := strings.TrimSpace(scanner.Text())
		if key == "" {
			continue
		}
		if !validKey(key) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read key list: %w", err)
	}

	return keys, nil
}

func validKey(key string) bool {
	if len(key) > 64 {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == ':':
		default:
			return false
		}
	}
	return true
}

// Link returns the href of the first link with the given rel.
func (f *Feed) Link(rel string) string {
	return findLink(f.Links, rel)
}

// Link returns the href of the first link with the given rel.
func (e *Entry) Link(rel string) string {
	return findLink(e.Links, rel)
}

func findLink(links []Link, rel string) string {
	for _, l := range links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

// NumChildren is zero when the element is absent or unparsable.
func (e *Entry) NumChildren() int {
	n, err := strconv.Atoi(strings.TrimSpace(e.NumChildrenRaw))
	if err != nil {
		return 0
	}
	return n
}

// EntityType classifies the entry. Entries without an item type are collections.
func (e *Entry) EntityType() models.EntityType {
	switch strings.TrimSpace(e.ItemType) {
	case "":
		return models.EntityCollection
	case "attachment", "note":
		return models.EntityAttachment
	default:
		return models.EntityItem
	}
}

// Entity converts the entry into a cached record marked Clean.
func (e *Entry) Entity() (models.Entity, error) {
	key := strings.TrimSpace(e.Key)
	if key == "" {
		return nil, ErrNoEntryKey
	}
	tag := strings.TrimSpace(e.Content.ETag)
	if tag == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryTag, key)
	}

	meta := models.EntityMeta{
		Key:       key,
		EntityTag: tag,
		SyncState: models.StateClean,
		Timestamp: strings.TrimSpace(e.Updated),
	}
	raw := e.rawContent()
	fields := e.contentFields()

	switch e.EntityType() {
	case models.EntityCollection:
		return &models.Collection{
			EntityMeta: meta,
			Title:      e.Title,
			ParentKey:  stringField(fields, "parentCollection", "parent"),
			Content:    raw,
		}, nil
	case models.EntityAttachment:
		parent := KeyAfter(e.Link(RelUp), "items")
		if parent == "" {
			parent = stringField(fields, "parentItem")
		}
		url := e.Link(RelEnclosure)
		if url == "" {
			url = stringField(fields, "url")
		}
		return &models.Attachment{
			EntityMeta: meta,
			ParentKey:  parent,
			Title:      e.Title,
			URL:        url,
			Content:    raw,
		}, nil
	default:
		return &models.Item{
			EntityMeta:     meta,
			Title:          e.Title,
			ItemType:       e.ItemType,
			Year:           e.Year,
			CreatorSummary: e.CreatorSummary,
			NumChildren:    e.NumChildren(),
			Content:        raw,
		}, nil
	}
}

func (e *Entry) rawContent() json.RawMessage {
	body := strings.TrimSpace(e.Content.Body)
	if body == "" || !json.Valid([]byte(body)) {
		return nil
	}
	return json.RawMessage(body)
}

func (e *Entry) contentFields() map[string]any {
	raw := e.rawContent()
	if raw == nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

// stringField returns the first non-empty string value among names.
// The API encodes "no parent" as false, which yields "".
func stringField(fields map[string]any, names ...string) string {
	for _, name := range names {
		if s, ok := fields[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// KeyAfter extracts the path segment that follows segment in href, so
// KeyAfter(".../collections/ABCD1234/items", "collections") is "ABCD1234".
func KeyAfter(href, segment string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	parts := strings.Split(href, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == segment && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return ""
}
