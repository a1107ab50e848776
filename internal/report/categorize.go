package report

import (
	"slices"

	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

// Bucket holds the posts of one category.
type Bucket struct {
	Category post.Category
	Posts    []post.Post
}

// Categorized maps categories to posts, keeping categories in the order
// they first appeared.
type Categorized struct {
	buckets []Bucket
	index   map[post.Category]int
}

// Group buckets posts by their assigned category. Unclassified posts go to
// CategoryOther.
func Group(posts []post.Post) *Categorized {
	c := &Categorized{index: make(map[post.Category]int)}
	for _, p := range posts {
		c.Add(p)
	}
	return c
}

// Add appends p to its category's bucket.
func (c *Categorized) Add(p post.Post) {
	cat := p.Category
	if cat == "" {
		cat = post.CategoryOther
	}
	i, ok := c.index[cat]
	if !ok {
		i = len(c.buckets)
		c.index[cat] = i
		c.buckets = append(c.buckets, Bucket{Category: cat})
	}
	c.buckets[i].Posts = append(c.buckets[i].Posts, p)
}

// Buckets returns the buckets in first-appearance order.
func (c *Categorized) Buckets() []Bucket {
	return c.buckets
}

// Total returns the number of posts across all buckets.
func (c *Categorized) Total() int {
	n := 0
	for _, b := range c.buckets {
		n += len(b.Posts)
	}
	return n
}

// Ordered returns the buckets in canonical category order, followed by any
// other categories in first-appearance order.
func (c *Categorized) Ordered() []Bucket {
	out := make([]Bucket, 0, len(c.buckets))
	for _, cat := range post.CanonicalOrder {
		if i, ok := c.index[cat]; ok {
			out = append(out, c.buckets[i])
		}
	}
	for _, b := range c.buckets {
		if !slices.Contains(post.CanonicalOrder, b.Category) {
			out = append(out, b)
		}
	}
	return out
}
