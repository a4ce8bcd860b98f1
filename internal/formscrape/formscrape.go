// Package formscrape reads login forms and carousel markup out of an HTML
// page, the way a client bootstrapping an SSO login has to.
package formscrape

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ErrFormNotFound = errors.New("form not found")

type Input struct {
	Name     string
	Type     string
	Value    string
	Pattern  string
	Required bool
}

type Form struct {
	Name    string
	Method  string
	Action  string
	Enctype string
	Hidden  url.Values
	Inputs  []Input
	// Submit is the name of the form's (first) named submit button.
	Submit string
}

// Carousel summarises a Bootstrap carousel.
type Carousel struct {
	Indicators       int
	Items            int
	ActiveIndicators int
	ActiveItems      int
	Images           []string
}

type Document struct {
	doc *goquery.Document
}

func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Form returns the form with the given name attribute.
func (d *Document) Form(name string) (*Form, error) {
	sel := d.doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("name", "") == name
	}).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrFormNotFound, name)
	}

	f := &Form{
		Name:    name,
		Method:  strings.ToUpper(sel.AttrOr("method", "GET")),
		Action:  strings.TrimSpace(sel.AttrOr("action", "")),
		Enctype: sel.AttrOr("enctype", "application/x-www-form-urlencoded"),
		Hidden:  url.Values{},
	}

	sel.Find("input").Each(func(_ int, s *goquery.Selection) {
		in := Input{
			Name:    s.AttrOr("name", ""),
			Type:    strings.ToLower(s.AttrOr("type", "text")),
			Value:   s.AttrOr("value", ""),
			Pattern: s.AttrOr("pattern", ""),
		}
		_, in.Required = s.Attr("required")
		if in.Name == "" {
			return
		}
		if in.Type == "hidden" {
			f.Hidden.Add(in.Name, in.Value)
		}
		f.Inputs = append(f.Inputs, in)
	})

	sel.Find("button, input[type=submit]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		typ := strings.ToLower(s.AttrOr("type", "submit"))
		name := s.AttrOr("name", "")
		if typ != "submit" || name == "" {
			return true
		}
		f.Submit = name
		return false
	})

	return f, nil
}

// Input looks up a named input.
func (f *Form) Input(name string) (Input, bool) {
	for _, in := range f.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}

// Payload is what a browser sends when the submit button is clicked and no
// visible field is filled in.
func (f *Form) Payload() url.Values {
	v := url.Values{}
	for k, vals := range f.Hidden {
		v[k] = append([]string(nil), vals...)
	}
	if f.Submit != "" {
		v.Set(f.Submit, "")
	}
	return v
}

// ResolveAction returns the absolute submission URL. A missing action posts
// back to the page itself.
func (f *Form) ResolveAction(page *url.URL) (*url.URL, error) {
	if f.Action == "" {
		u := *page
		u.Fragment = ""
		return &u, nil
	}
	ref, err := url.Parse(f.Action)
	if err != nil {
		return nil, fmt.Errorf("parse form action %q: %w", f.Action, err)
	}
	return page.ResolveReference(ref), nil
}

func (d *Document) Carousel(selector string) Carousel {
	sel := d.doc.Find(selector).First()
	c := Carousel{
		Indicators:       sel.Find(".carousel-indicators button").Length(),
		Items:            sel.Find(".carousel-item").Length(),
		ActiveIndicators: sel.Find(".carousel-indicators button.active").Length(),
		ActiveItems:      sel.Find(".carousel-item.active").Length(),
	}
	sel.Find(".carousel-item img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			c.Images = append(c.Images, src)
		}
	})
	return c
}
