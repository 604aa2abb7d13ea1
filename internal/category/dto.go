package category

import "github.com/frahmantamala/expense-insights/internal/budget"

type BucketResponse struct {
	Name  budget.Bucket `json:"name"`
	Title string        `json:"title"`
}

type CategoriesResponse struct {
	Categories []*Category      `json:"categories"`
	Buckets    []BucketResponse `json:"buckets"`
}
