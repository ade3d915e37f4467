package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a site name to a URL-friendly id. Non-Latin names are
// romanised first so "通义千问" becomes "tong-yi-qian-wen" rather than an empty
// string. Names with nothing usable yield "site".
func Slugify(name string) string {
	s := strings.ToLower(unidecode.Unidecode(name))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "site"
	}
	return s
}

// UniqueSlug returns Slugify(name), suffixed with -2, -3, ... until taken reports false.
func UniqueSlug(name string, taken func(string) bool) string {
	base := Slugify(name)
	id := base
	for n := 2; taken(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}
