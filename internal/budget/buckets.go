package budget

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Bucket string

const (
	BucketFood           Bucket = "food"
	BucketTransportation Bucket = "transportation"
	BucketEntertainment  Bucket = "entertainment"
	BucketBills          Bucket = "bills"
	BucketShopping       Bucket = "shopping"
	BucketOther          Bucket = "other"
)

//go:embed buckets.yaml
var bucketsYAML []byte

type bucketDef struct {
	Name     Bucket   `yaml:"name"`
	Title    string   `yaml:"title"`
	Keywords []string `yaml:"keywords"`
}

type bucketTable struct {
	Fallback Bucket      `yaml:"fallback"`
	Buckets  []bucketDef `yaml:"buckets"`
}

var table = mustLoadBuckets(bucketsYAML)

func mustLoadBuckets(raw []byte) bucketTable {
	var t bucketTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		panic(fmt.Sprintf("budget: invalid bucket table: %v", err))
	}
	if t.Fallback == "" || len(t.Buckets) == 0 {
		panic("budget: bucket table is empty")
	}
	for i := range t.Buckets {
		for j, k := range t.Buckets[i].Keywords {
			t.Buckets[i].Keywords[j] = strings.ToLower(strings.TrimSpace(k))
		}
	}
	return t
}

// Buckets lists the standard buckets in match order, followed by the fallback.
func Buckets() []Bucket {
	out := make([]Bucket, 0, len(table.Buckets)+1)
	for _, b := range table.Buckets {
		out = append(out, b.Name)
	}
	return append(out, table.Fallback)
}

// Title is the display name used in alert titles, e.g. "Food".
func (b Bucket) Title() string {
	for _, def := range table.Buckets {
		if def.Name == b {
			return def.Title
		}
	}
	s := string(b)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// StandardBucket maps an expense category onto a standard bucket.
func StandardBucket(category string) Bucket {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return table.Fallback
	}
	for _, def := range table.Buckets {
		for _, k := range def.Keywords {
			if strings.Contains(c, k) || strings.Contains(k, c) {
				return def.Name
			}
		}
	}
	return table.Fallback
}

// matchesCustom reports whether category belongs to the custom category name; either may
// contain the other.
func matchesCustom(category, name string) bool {
	c := strings.ToLower(strings.TrimSpace(category))
	n := strings.ToLower(strings.TrimSpace(name))
	if c == "" || n == "" {
		return false
	}
	return strings.Contains(c, n) || strings.Contains(n, c)
}
